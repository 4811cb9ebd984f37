package metrics

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestNew_AutoDimension(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "TestFunction")
	initOnce.Do(func() {}) // Reset once
	functionName = "TestFunction"

	r := New("TestNamespace")
	if r.namespace != "TestNamespace" {
		t.Errorf("expected namespace TestNamespace, got %s", r.namespace)
	}
	if r.dimensions["FunctionName"] != "TestFunction" {
		t.Errorf("expected FunctionName dimension TestFunction, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	// Capture stdout
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	functionName = "" // Clear for test isolation

	rec := New("DesignRefine")
	rec.Dimension("Outcome", "success")
	rec.Metric("OperationCount", 3, UnitCount)
	rec.Timing("RefineLatency", 1234*time.Millisecond)
	rec.Count("RefineRequests")
	rec.Property("lookupTier", "exact")
	rec.Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, output)
	}

	if _, ok := doc["_aws"]; !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	if doc["Outcome"] != "success" {
		t.Errorf("Outcome = %v, want success", doc["Outcome"])
	}
	if doc["OperationCount"] != float64(3) {
		t.Errorf("OperationCount = %v, want 3", doc["OperationCount"])
	}
	if doc["RefineLatency"] != float64(1234) {
		t.Errorf("RefineLatency = %v, want 1234", doc["RefineLatency"])
	}
	if doc["RefineRequests"] != float64(1) {
		t.Errorf("RefineRequests = %v, want 1", doc["RefineRequests"])
	}
	if doc["lookupTier"] != "exact" {
		t.Errorf("lookupTier = %v, want exact", doc["lookupTier"])
	}
}

func TestRecorder_EmptyFlush(t *testing.T) {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	functionName = ""
	New("DesignRefine").Property("only", "properties").Flush()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	if buf.Len() != 0 {
		t.Errorf("flush with no metrics emitted output: %s", buf.String())
	}
}
