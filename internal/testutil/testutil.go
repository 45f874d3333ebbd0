// Package testutil provides shared test helpers and synthetic signals.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertUndefined fails the test unless every named value is NaN.
func AssertUndefined(t *testing.T, values map[string]float64) {
	t.Helper()
	for name, v := range values {
		if !math.IsNaN(v) {
			t.Errorf("%s = %v, want undefined", name, v)
		}
	}
}

// AssertDefined fails the test if any named value is NaN or infinite.
func AssertDefined(t *testing.T, values map[string]float64) {
	t.Helper()
	for name, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want a finite value", name, v)
		}
	}
}

// Sine samples amp*sin(2*pi*freq*(t-delay)) at n points spaced period
// seconds apart from t=0. It returns timestamps and values.
func Sine(n int, period, freq, amp, delay float64) (time, value []float64) {
	time = make([]float64, n)
	value = make([]float64, n)
	for i := range time {
		t := float64(i) * period
		time[i] = t
		value[i] = amp * math.Sin(2*math.Pi*freq*(t-delay))
	}
	return time, value
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}
