package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"accounting/internal/core"
)

// fakeSheets serves the two Values endpoints the client uses.
type fakeSheets struct {
	mu       sync.Mutex
	existing [][]any
	updates  []gsheet.ValueRange
	ranges   []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(map[string]any{"values": f.existing})
	case http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.updates = append(f.updates, vr)
		idx := strings.Index(r.URL.Path, "/values/")
		f.ranges = append(f.ranges, r.URL.Path[idx+len("/values/"):])
		json.NewEncoder(w).Encode(map[string]any{"updatedRows": len(vr.Values)})
	default:
		http.Error(w, "unexpected method", http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	c := NewWithService(svc, Config{SpreadsheetID: "sheet-1", SheetName: "Bills"}, nil)
	c.now = func() time.Time { return time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC) }
	return c
}

var bills = []core.Bill{
	{Vendor: "Power Co", Amount: decimal.RequireFromString("120.50"), BillDate: "2025-07-01", Status: "pending"},
	{Vendor: "Water Co", Amount: decimal.NewFromInt(40), BillDate: "2025-07-02", Status: "paid"},
}

func TestAppendBills_EmptySheetWritesHeader(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.AppendBills(context.Background(), bills)
	require.NoError(t, err)
	assert.Equal(t, "2025 Bills!A2:H3", ref)

	require.Len(t, fake.updates, 1)
	assert.Equal(t, "2025 Bills!A1:H3", fake.ranges[0])
	require.Len(t, fake.updates[0].Values, 3)
	assert.Equal(t, "Date", fake.updates[0].Values[0][0])
	assert.Equal(t, "Power Co", fake.updates[0].Values[1][1])
}

func TestAppendBills_AppendsBelowExistingRows(t *testing.T) {
	fake := &fakeSheets{existing: [][]any{{"Date"}, {"2025-06-01"}, {"2025-06-02"}}}
	c := newTestClient(t, fake)

	ref, err := c.AppendBills(context.Background(), bills)
	require.NoError(t, err)
	assert.Equal(t, "2025 Bills!A4:H5", ref)
	require.Len(t, fake.updates[0].Values, 2)
}

func TestAppendBills_NoBillsIsNoop(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)
	ref, err := c.AppendBills(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Empty(t, fake.updates)
}

func TestAppendBills_NilService(t *testing.T) {
	c := &Client{}
	_, err := c.AppendBills(context.Background(), bills)
	assert.Error(t, err)
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.EqualError(t, err, "missing spreadsheet id")

	_, err = New(context.Background(), Config{SpreadsheetID: "x"}, nil)
	assert.ErrorContains(t, err, "missing credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/does/not/exist.json"}, nil)
	assert.ErrorContains(t, err, "read service account file")

	_, err = New(context.Background(), Config{SpreadsheetID: "x", OAuthClientFile: "/nope/client.json", OAuthTokenFile: "/nope/token.json"}, nil)
	assert.ErrorContains(t, err, "read oauth client file")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"Bills", "2025 Bills"},
		{"2024 Bills", "2024 Bills"},
		{"  Bills  ", "2025 Bills"},
		{"", ""},
		{"12345", "2025 12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, yearPrefixedName(tt.base, 2025), tt.base)
	}
}
