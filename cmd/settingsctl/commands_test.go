package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testUserID = "@alice:example.org"

type fakeMatrix struct {
	mu            sync.Mutex
	threePIDs     string
	accepted      []string
	idAccepted    []string
	passwordCalls int
	lastPassword  map[string]any
}

func newFakeMatrix(t *testing.T) (*fakeMatrix, *httptest.Server) {
	t.Helper()
	f := &fakeMatrix{
		threePIDs: `{"threepids":[` +
			`{"medium":"email","address":"alice@example.org"},` +
			`{"medium":"msisdn","address":"15550100"}]}`,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/_matrix/client/v3/account/3pid", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = io.WriteString(w, f.threePIDs)
	})
	mux.HandleFunc("/_matrix/client/v3/account/password", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.passwordCalls++
		f.lastPassword = body
		f.mu.Unlock()
		auth, _ := body["auth"].(map[string]any)
		switch {
		case auth == nil:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"session":"s1","flows":[{"stages":["m.login.password"]}],"params":{}}`)
		case auth["password"] != "old-secret":
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"errcode":"M_FORBIDDEN","error":"Invalid password","session":"s1","flows":[{"stages":["m.login.password"]}]}`)
		default:
			_, _ = io.WriteString(w, `{}`)
		}
	})
	mux.HandleFunc("/_matrix/client/v3/user/"+testUserID+"/account_data/m.accepted_terms", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPut {
			var body struct {
				Accepted []string `json:"accepted"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.accepted = body.Accepted
			_, _ = io.WriteString(w, `{}`)
			return
		}
		if f.accepted == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"errcode":"M_NOT_FOUND","error":"Account data not found"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"accepted": f.accepted})
	})
	mux.HandleFunc("/_matrix/identity/v2/terms", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body struct {
				UserAccepts []string `json:"user_accepts"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.mu.Lock()
			f.idAccepted = body.UserAccepts
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{}`)
			return
		}
		_, _ = io.WriteString(w, `{"policies":{"privacy_policy":{"version":"1.2",`+
			`"en":{"name":"Privacy Policy","url":"https://id.example.org/privacy-en.html"}}}}`)
	})
	mux.HandleFunc("/_matrix/identity/v2/account", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.idAccepted) == 0 {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"errcode":"M_TERMS_NOT_SIGNED","error":"Terms not signed"}`)
			return
		}
		_, _ = io.WriteString(w, `{"user_id":"`+testUserID+`"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func setMatrixEnv(t *testing.T, srv *httptest.Server, identity bool) {
	t.Helper()
	clearSettingsEnv(t)
	t.Setenv("SETTINGS_HOMESERVER_URL", srv.URL)
	t.Setenv("SETTINGS_ACCESS_TOKEN", "syt_token")
	t.Setenv("SETTINGS_USER_ID", testUserID)
	t.Setenv("SETTINGS_LOG_LEVEL", "error")
	if identity {
		t.Setenv("SETTINGS_IDENTITY_SERVER_URL", srv.URL)
		t.Setenv("SETTINGS_IDENTITY_TOKEN", "id_token")
	}
}

func executeCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "absent.env")))
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		discoveryFromCache = false
		acceptTermsYes = false
		identifiersRemote = false
		changePasswordLogoutDevices = false
		dumpMetrics = false
	})
	err := Execute()
	return stdout.String(), stderr.String(), err
}

func TestDiscoveryCommand_WithoutIdentityServer(t *testing.T) {
	_, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, false)

	out, _, err := executeCLI(t, "", "discovery")
	if err != nil {
		t.Fatalf("discovery: %v", err)
	}
	if !strings.Contains(out, "loaded(no_identity_service)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestAcceptTermsCommand_RecordsPoliciesAndReloads(t *testing.T) {
	fake, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, true)

	out, stderr, err := executeCLI(t, "", "discovery", "--metrics")
	if err != nil {
		t.Fatalf("discovery: %v", err)
	}
	if !strings.Contains(out, "loaded(terms_not_signed)") || !strings.Contains(out, "run settingsctl accept-terms") {
		t.Fatalf("expected terms gate, got %q", out)
	}
	if !strings.Contains(stderr, "account_settings_settings_discovery_load_total") {
		t.Fatalf("expected metrics dump on stderr, got %q", stderr)
	}

	out, _, err = executeCLI(t, "y\n", "accept-terms")
	if err != nil {
		t.Fatalf("accept-terms: %v", err)
	}
	if !strings.Contains(out, "requires these policies") || !strings.Contains(out, "privacy_policy (version 1.2)") {
		t.Fatalf("expected policy listing, got %q", out)
	}
	if !strings.Contains(out, "loaded(identifiers_linked)") || !strings.Contains(out, "alice@example.org") || !strings.Contains(out, "15550100") {
		t.Fatalf("expected linked identifiers after acceptance, got %q", out)
	}
	fake.mu.Lock()
	accepted := append([]string(nil), fake.accepted...)
	idAccepted := append([]string(nil), fake.idAccepted...)
	fake.mu.Unlock()
	if len(accepted) != 1 || accepted[0] != "https://id.example.org/privacy-en.html" {
		t.Fatalf("unexpected accepted terms %v", accepted)
	}
	if len(idAccepted) != 1 || idAccepted[0] != accepted[0] {
		t.Fatalf("expected the identity server to receive the agreement, got %v", idAccepted)
	}

	out, _, err = executeCLI(t, "", "accept-terms")
	if err != nil {
		t.Fatalf("accept-terms after agreement: %v", err)
	}
	if strings.Contains(out, "requires these policies") || !strings.Contains(out, "loaded(identifiers_linked)") {
		t.Fatalf("expected no prompt once terms are accepted, got %q", out)
	}
}

func TestAcceptTermsCommand_DeclinedPrompt(t *testing.T) {
	fake, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, true)

	if _, _, err := executeCLI(t, "n\n", "accept-terms"); err == nil {
		t.Fatalf("expected declined prompt to fail")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.accepted != nil || fake.idAccepted != nil {
		t.Fatalf("expected no terms to be recorded, got %v / %v", fake.accepted, fake.idAccepted)
	}
}

func TestChangePasswordCommand_CompletesInteractiveAuth(t *testing.T) {
	fake, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, false)

	out, stderr, err := executeCLI(t, "old-secret\nnew-secret\nnew-secret\n", "change-password", "--logout-devices")
	if err != nil {
		t.Fatalf("change-password: %v (stderr=%q)", err, stderr)
	}
	if !strings.Contains(out, "password changed") {
		t.Fatalf("unexpected output %q", out)
	}
	if !strings.Contains(stderr, "changing password...") {
		t.Fatalf("expected progress line on stderr, got %q", stderr)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.passwordCalls != 2 {
		t.Fatalf("expected two password requests, got %d", fake.passwordCalls)
	}
	if fake.lastPassword["new_password"] != "new-secret" || fake.lastPassword["logout_devices"] != true {
		t.Fatalf("unexpected final password request %v", fake.lastPassword)
	}
}

func TestChangePasswordCommand_WrongPassword(t *testing.T) {
	_, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, false)

	var stderr bytes.Buffer
	_, _, err := executeCLI(t, "wrong\nnew-secret\nnew-secret\n", "change-password")
	if err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	emitCommandError(err, &stderr)
	if !strings.HasPrefix(stderr.String(), "M_FORBIDDEN:") {
		t.Fatalf("expected M_FORBIDDEN display error, got %q", stderr.String())
	}
}

func TestChangePasswordCommand_MismatchedRepeat(t *testing.T) {
	fake, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, false)

	if _, _, err := executeCLI(t, "old-secret\nnew-secret\nother\n", "change-password"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.passwordCalls != 0 {
		t.Fatalf("expected no password request, got %d", fake.passwordCalls)
	}
}

func TestIdentifiersSyncAndList_UseCacheDatabase(t *testing.T) {
	fake, srv := newFakeMatrix(t)
	setMatrixEnv(t, srv, false)
	t.Setenv("SETTINGS_DATABASE_DRIVER", "sqlite3")
	t.Setenv("SETTINGS_DATABASE_DSN", "file:"+filepath.Join(t.TempDir(), "settings.db")+"?_foreign_keys=on")

	out, _, err := executeCLI(t, "", "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrations applied successfully") {
		t.Fatalf("unexpected migrate output %q", out)
	}

	out, _, err = executeCLI(t, "", "identifiers", "sync")
	if err != nil {
		t.Fatalf("identifiers sync: %v", err)
	}
	if !strings.Contains(out, "alice@example.org") || !strings.Contains(out, "15550100") {
		t.Fatalf("unexpected sync output %q", out)
	}

	fake.mu.Lock()
	fake.threePIDs = `{"threepids":[]}`
	fake.mu.Unlock()

	out, _, err = executeCLI(t, "", "identifiers", "list")
	if err != nil {
		t.Fatalf("identifiers list: %v", err)
	}
	if !strings.Contains(out, "alice@example.org") {
		t.Fatalf("expected cached identifiers, got %q", out)
	}

	out, _, err = executeCLI(t, "", "discovery", "--cached")
	if err != nil {
		t.Fatalf("discovery --cached: %v", err)
	}
	if !strings.Contains(out, "loaded(no_identity_service)") {
		t.Fatalf("unexpected cached discovery output %q", out)
	}

	out, _, err = executeCLI(t, "", "identifiers", "list", "--remote")
	if err != nil {
		t.Fatalf("identifiers list --remote: %v", err)
	}
	if strings.Contains(out, "alice@example.org") {
		t.Fatalf("expected empty remote list, got %q", out)
	}
}
