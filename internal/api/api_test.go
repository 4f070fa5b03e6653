package api

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/starford/ledger/internal/auth"
	"github.com/starford/ledger/internal/ledger"
	"github.com/starford/ledger/internal/recordstore"
	"github.com/starford/ledger/internal/testutil"
)

// testEnv sets up a temp region directory, SQLite DB, service, and router.
// An empty authToken means disabled bearer mode.
func testEnv(t *testing.T, authToken string) (*ledger.Service, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, sseHandler http.Handler) (*ledger.Service, http.Handler) {
	t.Helper()
	_, regions := testutil.TestRegions(t)
	db := testutil.TestDB(t)
	svc := ledger.NewService(regions, db,
		ledger.WithDefaults(recordstore.Config{MaxRecords: 3, MaxDataLength: 8}),
		ledger.WithLimits(recordstore.Config{MaxRecords: 100, MaxDataLength: 64}))
	router := NewRouter(svc, authToken != "", authToken, auth.NewVerifier(0), sseHandler)
	return svc, router
}

func newSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatal(err)
	}
	return signer
}

// do sends a request, signing it when signer is non-nil.
func do(t *testing.T, router http.Handler, signer ssh.Signer, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	if signer != nil {
		if err := auth.Sign(req, raw, signer, time.Now()); err != nil {
			t.Fatal(err)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createStore(t *testing.T, router http.Handler, signer ssh.Signer) ledger.StoreInfo {
	t.Helper()
	w := do(t, router, signer, http.MethodPost, "/stores", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create store = %d, body = %s", w.Code, w.Body.String())
	}
	var info ledger.StoreInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	return info
}

func data(s string) map[string]string { return map[string]string{"data": s} }

func TestCreateAndGetStore(t *testing.T) {
	_, router := testEnv(t, "")
	info := createStore(t, router, newSigner(t))
	if info.MaxRecords != 3 || info.MaxDataLength != 8 || info.Count != 0 {
		t.Errorf("info = %+v", info)
	}

	w := do(t, router, nil, http.MethodGet, "/stores/"+info.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get store = %d", w.Code)
	}
}

func TestCreateStoreCustomAndOverLimit(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)

	w := do(t, router, signer, http.MethodPost, "/stores", CreateStoreRequest{MaxRecords: 10})
	if w.Code != http.StatusCreated {
		t.Fatalf("custom = %d, body = %s", w.Code, w.Body.String())
	}
	var info ledger.StoreInfo
	_ = json.NewDecoder(w.Body).Decode(&info)
	if info.MaxRecords != 10 || info.MaxDataLength != 8 {
		t.Errorf("info = %+v", info)
	}

	w = do(t, router, signer, http.MethodPost, "/stores", CreateStoreRequest{MaxRecords: 1000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("over limit = %d, want 400", w.Code)
	}
}

func TestRecordScenario(t *testing.T) {
	_, router := testEnv(t, "")
	alice, bob := newSigner(t), newSigner(t)
	info := createStore(t, router, alice)
	base := "/stores/" + info.ID + "/records"

	w := do(t, router, alice, http.MethodPost, base, data("hello"))
	if w.Code != http.StatusCreated {
		t.Fatalf("append A = %d, body = %s", w.Code, w.Body.String())
	}
	var rec ledger.RecordView
	_ = json.NewDecoder(w.Body).Decode(&rec)
	if rec.Index != 0 || rec.Author != auth.IdentityOf(alice.PublicKey()) {
		t.Errorf("append A = %+v", rec)
	}

	w = do(t, router, bob, http.MethodPost, base, data("world"))
	_ = json.NewDecoder(w.Body).Decode(&rec)
	if w.Code != http.StatusCreated || rec.Index != 1 {
		t.Fatalf("append B = %d %+v", w.Code, rec)
	}

	w = do(t, router, alice, http.MethodPut, base+"/0", data("hi"))
	if w.Code != http.StatusOK {
		t.Fatalf("update A = %d, body = %s", w.Code, w.Body.String())
	}

	if w = do(t, router, bob, http.MethodPut, base+"/0", data("nope")); w.Code != http.StatusForbidden {
		t.Errorf("update B = %d, want 403", w.Code)
	}
	if w = do(t, router, alice, http.MethodPut, base+"/5", data("x")); w.Code != http.StatusNotFound {
		t.Errorf("update out of range = %d, want 404", w.Code)
	}

	w = do(t, router, nil, http.MethodGet, base+"/0", nil)
	_ = json.NewDecoder(w.Body).Decode(&rec)
	if w.Code != http.StatusOK || rec.Data != "hi" {
		t.Errorf("get 0 = %d %+v", w.Code, rec)
	}
}

func TestAppendLimits(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)
	info := createStore(t, router, signer)
	base := "/stores/" + info.ID + "/records"

	if w := do(t, router, signer, http.MethodPost, base, data("123456789")); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized = %d, want 413", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := do(t, router, signer, http.MethodPost, base, data(fmt.Sprint(i))); w.Code != http.StatusCreated {
			t.Fatalf("append %d = %d", i, w.Code)
		}
	}
	if w := do(t, router, signer, http.MethodPost, base, data("x")); w.Code != http.StatusConflict {
		t.Errorf("full = %d, want 409", w.Code)
	}
}

func TestAppendRequiresData(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)
	info := createStore(t, router, signer)

	w := do(t, router, signer, http.MethodPost, "/stores/"+info.ID+"/records", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing data = %d, want 400", w.Code)
	}
	w = do(t, router, signer, http.MethodPost, "/stores/"+info.ID+"/records", data(""))
	if w.Code != http.StatusCreated {
		t.Errorf("empty data = %d, want 201", w.Code)
	}
}

func TestMutationRequiresSignature(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)
	info := createStore(t, router, signer)

	if w := do(t, router, nil, http.MethodPost, "/stores", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned create = %d, want 401", w.Code)
	}

	// Signature over a different body is rejected.
	raw, _ := json.Marshal(data("signed"))
	req := httptest.NewRequest(http.MethodPost, "/stores/"+info.ID+"/records", bytes.NewReader([]byte(`{"data":"swapped"}`)))
	if err := auth.Sign(req, raw, signer, time.Now()); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("tampered body = %d, want 401", w.Code)
	}
}

func TestReplayRejected(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)
	info := createStore(t, router, signer)

	raw, _ := json.Marshal(data("once"))
	req := httptest.NewRequest(http.MethodPost, "/stores/"+info.ID+"/records", bytes.NewReader(raw))
	if err := auth.Sign(req, raw, signer, time.Now()); err != nil {
		t.Fatal(err)
	}
	replay := req.Clone(context.Background())
	replay.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw)).Body

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("first = %d", w.Code)
	}
	w = httptest.NewRecorder()
	router.ServeHTTP(w, replay)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("replay = %d, want 401", w.Code)
	}
}

func TestListAndAuthorRecords(t *testing.T) {
	_, router := testEnv(t, "")
	alice, bob := newSigner(t), newSigner(t)
	info := createStore(t, router, alice)
	base := "/stores/" + info.ID + "/records"
	do(t, router, alice, http.MethodPost, base, data("a"))
	do(t, router, bob, http.MethodPost, base, data("b"))

	aliceID := auth.IdentityOf(alice.PublicKey()).String()

	w := do(t, router, nil, http.MethodGet, base+"?author="+aliceID, nil)
	var resp RecordListResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || resp.Total != 1 || resp.Records[0].Data != "a" {
		t.Errorf("list by author = %d %+v", w.Code, resp)
	}

	w = do(t, router, nil, http.MethodGet, base+"?limit=1&offset=1", nil)
	resp = RecordListResponse{}
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if resp.Total != 2 || len(resp.Records) != 1 || resp.Records[0].Index != 1 {
		t.Errorf("paged list = %+v", resp)
	}

	w = do(t, router, nil, http.MethodGet, "/authors/"+aliceID+"/records", nil)
	resp = RecordListResponse{}
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || resp.Total != 1 {
		t.Errorf("author records = %d %+v", w.Code, resp)
	}

	if w = do(t, router, nil, http.MethodGet, "/authors/zz/records", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad author = %d, want 400", w.Code)
	}
	if w = do(t, router, nil, http.MethodGet, base+"?author=zz", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad author filter = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)
	info := createStore(t, router, signer)
	do(t, router, signer, http.MethodPost, "/stores/"+info.ID+"/records", data("needle"))

	w := do(t, router, nil, http.MethodGet, "/search?q=needle", nil)
	var resp SearchResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	if w.Code != http.StatusOK || len(resp.Results) != 1 || resp.Results[0].StoreID != info.ID {
		t.Errorf("search = %d %+v", w.Code, resp)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, nil, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	_, router := testEnv(t, "")
	signer := newSigner(t)

	if w := do(t, router, nil, http.MethodGet, "/stores/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("get store = %d, want 404", w.Code)
	}
	if w := do(t, router, nil, http.MethodGet, "/stores/ghost/records", nil); w.Code != http.StatusNotFound {
		t.Errorf("list = %d, want 404", w.Code)
	}
	if w := do(t, router, signer, http.MethodPost, "/stores/ghost/records", data("x")); w.Code != http.StatusNotFound {
		t.Errorf("append = %d, want 404", w.Code)
	}
	info := createStore(t, router, signer)
	if w := do(t, router, nil, http.MethodGet, "/stores/"+info.ID+"/records/0", nil); w.Code != http.StatusNotFound {
		t.Errorf("empty store read = %d, want 404", w.Code)
	}
	if w := do(t, router, nil, http.MethodGet, "/stores/"+info.ID+"/records/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodPost, "/stores", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	if err := auth.Sign(req, nil, newSigner(t), time.Now()); err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, nil, http.MethodGet, "/search?q=x", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/search?q=x", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, nil, http.MethodGet, "/search?q=x", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func sseStub() http.Handler {
	// Writes headers and blocks until context done.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, "secret", sseStub())

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, "tok", sseStub())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
