package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	app "github.com/chainwage/payroll_layer/internal/app"
	domain "github.com/chainwage/payroll_layer/internal/app/domain/roster"
	"github.com/chainwage/payroll_layer/internal/app/domain/user"
	"github.com/chainwage/payroll_layer/internal/wallet"
)

type fakeProvider struct {
	account wallet.Account
	network wallet.Network
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]wallet.Account, error) {
	return []wallet.Account{f.account}, nil
}

func (f *fakeProvider) GetAccount(context.Context) (wallet.Account, error) {
	return f.account, nil
}

func (f *fakeProvider) GetNetwork(context.Context) (wallet.Network, error) {
	return f.network, nil
}

func (f *fakeProvider) SwitchNetwork(_ context.Context, magic uint32) error {
	f.network = wallet.Network{Magic: magic}
	return nil
}

func (f *fakeProvider) AddNetwork(context.Context, wallet.NetworkDefinition) error {
	return nil
}

func testAddress(t *testing.T) string {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv.Address()
}

func newTestServer(t *testing.T, provider wallet.Provider) (*httptest.Server, *app.Application) {
	t.Helper()
	application, err := app.New(app.Stores{}, app.Deps{
		Provider: provider,
		Networks: []wallet.NetworkDefinition{
			{Magic: 860833102, Name: "Neo N3 MainNet", RPCURL: "https://mainnet1.neo.coz.io:443"},
		},
		JWTSecret: []byte("test-secret"),
	}, nil)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}

	server := httptest.NewServer(NewHandler(application))
	t.Cleanup(server.Close)
	return server, application
}

func doJSON(t *testing.T, method, url string, payload interface{}) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestConnectEndpoint(t *testing.T) {
	addr := testAddress(t)
	provider := &fakeProvider{
		account: wallet.Account{Address: addr},
		network: wallet.Network{Magic: 860833102},
	}
	server, application := newTestServer(t, provider)

	if _, err := application.Stores.Users.CreateUser(context.Background(), user.User{
		Address: addr,
		Role:    user.RoleEmployer,
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	resp := doJSON(t, http.MethodPost, server.URL+"/connect", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Address      string `json:"address"`
		Role         string `json:"role"`
		RedirectPath string `json:"redirect_path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Address != addr || result.Role != "employer" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNetworksEndpoint(t *testing.T) {
	server, _ := newTestServer(t, &fakeProvider{network: wallet.Network{Magic: 860833102}})

	resp := doJSON(t, http.MethodGet, server.URL+"/networks", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var networks []wallet.NetworkDefinition
	if err := json.NewDecoder(resp.Body).Decode(&networks); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(networks) != 1 || networks[0].Magic != 860833102 {
		t.Fatalf("unexpected networks %+v", networks)
	}
}

func TestRoleEndpoints(t *testing.T) {
	server, _ := newTestServer(t, &fakeProvider{network: wallet.Network{Magic: 860833102}})
	addr := testAddress(t)

	// Unknown address resolves to 404.
	resp := doJSON(t, http.MethodGet, server.URL+"/roles/"+addr, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before assignment, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/roles", map[string]string{
		"address": addr,
		"role":    "employer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/roles/"+addr, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after assignment, got %d", resp.StatusCode)
	}
	var resolution struct {
		Role   string `json:"role"`
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&resolution); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resolution.Role != "employer" {
		t.Fatalf("unexpected resolution %+v", resolution)
	}

	// Invalid role is rejected.
	resp = doJSON(t, http.MethodPost, server.URL+"/roles", map[string]string{
		"address": testAddress(t),
		"role":    "overlord",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid role, got %d", resp.StatusCode)
	}
}

func TestEmployeeEndpoints(t *testing.T) {
	server, _ := newTestServer(t, &fakeProvider{network: wallet.Network{Magic: 860833102}})
	employer := testAddress(t)
	base := fmt.Sprintf("%s/employers/%s/employees", server.URL, employer)

	resp := doJSON(t, http.MethodPost, base, map[string]interface{}{
		"address":  testAddress(t),
		"name":     "Alice",
		"salary":   1000,
		"decimals": 8,
		"schedule": "0 9 * * 1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var emp domain.Employee
	if err := json.NewDecoder(resp.Body).Decode(&emp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp = doJSON(t, http.MethodGet, base, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var list []domain.Employee
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 employee, got %d", len(list))
	}

	name := "Alice B"
	resp = doJSON(t, http.MethodPut, base+"/"+emp.ID, map[string]interface{}{"name": name})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, base+"/"+emp.ID+"/active", map[string]bool{"active": false})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", resp.StatusCode)
	}
	var paused domain.Employee
	if err := json.NewDecoder(resp.Body).Decode(&paused); err != nil {
		t.Fatalf("decode paused: %v", err)
	}
	if paused.Active {
		t.Fatal("expected paused employee")
	}

	resp = doJSON(t, http.MethodDelete, base+"/"+emp.ID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodDelete, base+"/"+emp.ID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("re-delete: expected 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/employers/%s/payouts", server.URL, employer), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payouts: expected 200, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteAndMethods(t *testing.T) {
	server, _ := newTestServer(t, &fakeProvider{network: wallet.Network{Magic: 860833102}})

	resp := doJSON(t, http.MethodGet, server.URL+"/connect", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/employers/someone/unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
