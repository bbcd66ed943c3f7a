package zru

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeAPI is an in-memory stand-in for the payment API. Objects live under
// their collection path and get sequential ids.
type fakeAPI struct {
	mu      sync.Mutex
	objects map[string]map[string]any
	calls   []string
	bodies  map[string]map[string]any
	refunds map[string]string
	seq     int
	srv     *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		objects: map[string]map[string]any{},
		bodies:  map[string]map[string]any{},
		refunds: map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client() *Client {
	return NewClient(Credentials{Key: "key", Secret: "secret"}, WithBaseURL(f.srv.URL))
}

// put seeds an object, e.g. put("/sale/", "S1", attrs).
func (f *fakeAPI) put(collection, id string, attrs map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj := map[string]any{"id": id}
	for k, v := range attrs {
		obj[k] = v
	}
	f.objects[collection+id+"/"] = obj
}

func (f *fakeAPI) lastBody(path string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[path]
}

func (f *fakeAPI) refundOf(saleID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refunds[saleID]
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	var body map[string]any
	if r.Body != nil {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		_ = dec.Decode(&body)
	}
	if body != nil {
		f.bodies[r.URL.Path] = body
	}

	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(segments) == 1:
		f.seq++
		id := fmt.Sprintf("%s-%d", segments[0], f.seq)
		obj := map[string]any{"id": id}
		for k, v := range body {
			obj[k] = v
		}
		obj["pay_url"] = "https://pay.example/" + id
		obj["iframe_url"] = "https://pay.example/iframe/" + id
		f.objects[r.URL.Path+id+"/"] = obj
		writeJSON(w, http.StatusCreated, obj)

	case r.Method == http.MethodPost && len(segments) == 3 && segments[0] == "sale" && segments[2] == "refund":
		if _, ok := f.objects["/sale/"+segments[1]+"/"]; !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "not found"})
			return
		}
		amount := fmt.Sprint(body["amount"])
		f.refunds[segments[1]] = amount
		writeJSON(w, http.StatusOK, map[string]any{"success": amount != "0.00"})

	case len(segments) == 2:
		obj, ok := f.objects[r.URL.Path]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, obj)
		case http.MethodPatch:
			for k, v := range body {
				obj[k] = v
			}
			writeJSON(w, http.StatusOK, obj)
		case http.MethodDelete:
			delete(f.objects, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
