package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nspcc-dev/neo-go/pkg/crypto/keys"

	"github.com/chainwage/payroll_layer/internal/app/domain/user"
)

const testScriptHash = "0x1234567890123456789012345678901234567890"

func testAddress(t *testing.T) string {
	t.Helper()
	priv, err := keys.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv.Address()
}

// registryServer fakes a Neo node that answers invokefunction with a fixed
// stack.
func registryServer(t *testing.T, state string, stack []StackItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Method != "invokefunction" {
			t.Errorf("unexpected method %s", req.Method)
		}

		result, _ := json.Marshal(InvokeResult{
			State: state,
			Stack: stack,
		})
		_ = json.NewEncoder(w).Encode(RPCResponse{
			JSONRPC: "2.0",
			Result:  result,
			ID:      req.ID,
		})
	}))
}

func newRegistry(t *testing.T, serverURL string) *RoleRegistry {
	t.Helper()
	client, err := NewClient(Config{RPCURL: serverURL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	registry, err := NewRoleRegistry(client, testScriptHash)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

func recordStack(role int, employer string) []StackItem {
	items := []StackItem{
		{Type: "Integer", Value: json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("%d", role)))},
		{Type: "ByteString", Value: json.RawMessage(fmt.Sprintf("%q", base64.StdEncoding.EncodeToString([]byte(employer))))},
	}
	raw, _ := json.Marshal(items)
	return []StackItem{{Type: "Array", Value: raw}}
}

func TestGetRecordEmployer(t *testing.T) {
	server := registryServer(t, "HALT", recordStack(1, ""))
	defer server.Close()

	record, err := newRegistry(t, server.URL).GetRecord(context.Background(), testAddress(t))
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Role != user.RoleEmployer || record.Employer != "" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestGetRecordEmployee(t *testing.T) {
	employer := testAddress(t)
	server := registryServer(t, "HALT", recordStack(2, employer))
	defer server.Close()

	record, err := newRegistry(t, server.URL).GetRecord(context.Background(), testAddress(t))
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.Role != user.RoleEmployee || record.Employer != employer {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestGetRecordUnregistered(t *testing.T) {
	cases := []struct {
		name  string
		stack []StackItem
	}{
		{"empty stack", nil},
		{"null item", []StackItem{{Type: "Null"}}},
		{"role zero", recordStack(0, "")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := registryServer(t, "HALT", tc.stack)
			defer server.Close()

			_, err := newRegistry(t, server.URL).GetRecord(context.Background(), testAddress(t))
			if !errors.Is(err, ErrNotRegistered) {
				t.Fatalf("expected ErrNotRegistered, got %v", err)
			}
		})
	}
}

func TestGetRecordFaultedInvocation(t *testing.T) {
	server := registryServer(t, "FAULT", nil)
	defer server.Close()

	_, err := newRegistry(t, server.URL).GetRecord(context.Background(), testAddress(t))
	if err == nil || errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected fault error, got %v", err)
	}
}

func TestGetRecordInvalidEmployerAddress(t *testing.T) {
	server := registryServer(t, "HALT", recordStack(2, "not-base58"))
	defer server.Close()

	_, err := newRegistry(t, server.URL).GetRecord(context.Background(), testAddress(t))
	if err == nil {
		t.Fatal("expected error for malformed employer address")
	}
}

func TestGetRecordInvalidCallerAddress(t *testing.T) {
	registry, err := NewRoleRegistry(&Client{rpcURL: "http://unused", httpClient: http.DefaultClient}, testScriptHash)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if _, err := registry.GetRecord(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
