package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfkeep/shelfkeep-server/internal/service"
)

func (ts *testServer) openRental(t *testing.T, body map[string]any) service.RentalReceipt {
	t.Helper()
	resp := ts.api.Post("/api/v1/rents", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	return decodeEnvelope[service.RentalReceipt](t, resp.Body.Bytes()).Data
}

func TestRentalFlow(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 2)
	ana := ts.createClient(t, "Ana Silva", 123456789)

	receipt := ts.openRental(t, map[string]any{
		"client_id":     ana.ID,
		"serial_number": duneSerial,
	})
	assert.NotZero(t, receipt.RentID)
	assert.NotEmpty(t, receipt.Reference)
	assert.Equal(t, "Ana Silva", receipt.ClientName)
	assert.Equal(t, "Dune", receipt.BookTitle)
	assert.Equal(t, testNow, receipt.StartDate.UTC())
	assert.Equal(t, "2024-03-08", receipt.DueDate.Format("2006-01-02"))

	// Stock reflects the loan.
	book := decodeEnvelope[BookResponse](t, ts.api.Get(fmt.Sprintf("/api/v1/books/%d", duneSerial)).Body.Bytes()).Data
	assert.Equal(t, int16(2), book.Stock.TotalAmount)
	assert.Equal(t, int16(1), book.Stock.AvailableAmount)

	resp := ts.api.Post(fmt.Sprintf("/api/v1/rents/%d/reception", receipt.RentID), map[string]any{
		"condition":   "Good",
		"return_date": "11-03-2024",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	reception := decodeEnvelope[ReceptionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, receipt.RentID, reception.RentID)
	assert.Equal(t, "As new", reception.OriginalCondition)
	assert.Equal(t, "Good", reception.ReceivedCondition)
	assert.Equal(t, int64(3), reception.LateDays)
	assert.Equal(t, "1.125", reception.LateFee)
	assert.Equal(t, "0.125", reception.DegradationFee)
	assert.Equal(t, "1.25", reception.TotalFine)

	book = decodeEnvelope[BookResponse](t, ts.api.Get(fmt.Sprintf("/api/v1/books/%d", duneSerial)).Body.Bytes()).Data
	assert.Equal(t, int16(2), book.Stock.AvailableAmount)

	rent := decodeEnvelope[RentResponse](t, ts.api.Get(fmt.Sprintf("/api/v1/rents/%d", receipt.RentID)).Body.Bytes()).Data
	assert.False(t, rent.Open)
	require.NotNil(t, rent.Reception)
	assert.Equal(t, "Good", rent.Reception.ReceivedCondition)
	assert.Equal(t, "1.25", rent.Reception.TotalFine)

	// The copy now carries the received condition.
	copies := decodeEnvelope[CopiesResponse](t, ts.api.Get(fmt.Sprintf("/api/v1/books/%d/copies", duneSerial)).Body.Bytes()).Data
	require.Len(t, copies.Copies, 2)
	for _, c := range copies.Copies {
		require.NotNil(t, c.Rented)
		assert.False(t, *c.Rented)
		if c.ID == receipt.CopyID {
			assert.Equal(t, "Good", c.Condition)
		}
	}
}

func TestRentalFlow_SameDayReturnIsFree(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)
	ana := ts.createClient(t, "Ana Silva", 123456789)

	receipt := ts.openRental(t, map[string]any{"client_nif": ana.NIF, "serial_number": duneSerial})

	resp := ts.api.Post(fmt.Sprintf("/api/v1/rents/%d/reception", receipt.RentID), map[string]any{
		"condition": "As new",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	reception := decodeEnvelope[ReceptionResponse](t, resp.Body.Bytes()).Data
	assert.Equal(t, int64(0), reception.LateDays)
	assert.Equal(t, "0.00", reception.TotalFine)
}

func TestOpenRental_Rejections(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)
	ana := ts.createClient(t, "Ana Silva", 123456789)
	rui := ts.createClient(t, "Rui Costa", 987654322)

	first := ts.openRental(t, map[string]any{"client_id": ana.ID, "serial_number": duneSerial})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"out of stock", map[string]any{"client_id": rui.ID, "serial_number": duneSerial}, http.StatusConflict, "OUT_OF_STOCK"},
		{"explicit copy without stock", map[string]any{"client_id": rui.ID, "copy_id": first.CopyID}, http.StatusConflict, "OUT_OF_STOCK"},
		{"unknown book", map[string]any{"client_id": rui.ID, "serial_number": 9780000000999}, http.StatusNotFound, "NOT_FOUND"},
		{"missing book", map[string]any{"client_id": rui.ID}, http.StatusBadRequest, "VALIDATION"},
		{"bad start date", map[string]any{"client_id": rui.ID, "serial_number": duneSerial, "start_date": "2024-03-01"}, http.StatusBadRequest, "INVALID_DATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/rents", tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())

			env := decodeEnvelope[any](t, resp.Body.Bytes())
			assert.False(t, env.Success)
			assert.Equal(t, tt.wantCode, env.Code)
		})
	}
}

func TestOpenRental_ClientHasActiveRental(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 2)
	ana := ts.createClient(t, "Ana Silva", 123456789)

	ts.openRental(t, map[string]any{"client_id": ana.ID, "serial_number": duneSerial})

	resp := ts.api.Post("/api/v1/rents", map[string]any{"client_id": ana.ID, "serial_number": duneSerial})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "CLIENT_HAS_ACTIVE_RENTAL", decodeEnvelope[any](t, resp.Body.Bytes()).Code)

	resp = ts.api.Post("/api/v1/rents", map[string]any{"client_id": 999, "serial_number": duneSerial})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope[any](t, resp.Body.Bytes()).Code)
}

func TestCloseRental_Rejections(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)
	ana := ts.createClient(t, "Ana Silva", 123456789)
	receipt := ts.openRental(t, map[string]any{"client_id": ana.ID, "serial_number": duneSerial})
	closePath := fmt.Sprintf("/api/v1/rents/%d/reception", receipt.RentID)

	tests := []struct {
		name       string
		path       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{"unknown rent", "/api/v1/rents/999/reception", map[string]any{"condition": "Good"}, http.StatusNotFound, "NOT_FOUND"},
		{"unknown condition", closePath, map[string]any{"condition": "Mint"}, http.StatusBadRequest, "INVALID_CONDITION"},
		{"bad date", closePath, map[string]any{"condition": "Good", "return_date": "March 11"}, http.StatusBadRequest, "INVALID_DATE"},
		{"before start", closePath, map[string]any{"condition": "Good", "return_date": "29-02-2024"}, http.StatusUnprocessableEntity, "RETURN_BEFORE_START"},
		{"missing condition", closePath, map[string]any{}, http.StatusBadRequest, "VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post(tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantCode, decodeEnvelope[any](t, resp.Body.Bytes()).Code)
		})
	}

	// A rejected close leaves the rent open.
	rent := decodeEnvelope[RentResponse](t, ts.api.Get(fmt.Sprintf("/api/v1/rents/%d", receipt.RentID)).Body.Bytes()).Data
	assert.True(t, rent.Open)

	resp := ts.api.Post(closePath, map[string]any{"condition": "Bad"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post(closePath, map[string]any{"condition": "Bad"})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "ALREADY_CLOSED", decodeEnvelope[any](t, resp.Body.Bytes()).Code)
}

func TestCloseRental_ConditionImproved(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 1)
	ana := ts.createClient(t, "Ana Silva", 123456789)

	copyID := ts.copyIDs(t, duneSerial)[0]
	resp := ts.api.Patch(fmt.Sprintf("/api/v1/copies/%d", copyID), map[string]any{"condition": "Used"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	receipt := ts.openRental(t, map[string]any{"client_id": ana.ID, "copy_id": copyID})

	resp = ts.api.Post(fmt.Sprintf("/api/v1/rents/%d/reception", receipt.RentID), map[string]any{"condition": "Good"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "CONDITION_IMPROVED", decodeEnvelope[any](t, resp.Body.Bytes()).Code)
}

func TestListRents(t *testing.T) {
	ts := setupTestServer(t, Options{})
	ts.createDune(t, 2)
	ana := ts.createClient(t, "Ana Silva", 123456789)
	rui := ts.createClient(t, "Rui Costa", 987654322)

	first := ts.openRental(t, map[string]any{"client_id": ana.ID, "serial_number": duneSerial})
	ts.openRental(t, map[string]any{"client_id": rui.ID, "serial_number": duneSerial})

	resp := ts.api.Post(fmt.Sprintf("/api/v1/rents/%d/reception", first.RentID), map[string]any{"condition": "As new"})
	require.Equal(t, http.StatusOK, resp.Code)

	all := decodeEnvelope[PageResponse[RentResponse]](t, ts.api.Get("/api/v1/rents").Body.Bytes()).Data
	assert.Len(t, all.Items, 2)

	open := decodeEnvelope[PageResponse[RentResponse]](t, ts.api.Get("/api/v1/rents?open=true").Body.Bytes()).Data
	require.Len(t, open.Items, 1)
	assert.Equal(t, rui.ID, open.Items[0].ClientID)

	byClient := decodeEnvelope[PageResponse[RentResponse]](t,
		ts.api.Get(fmt.Sprintf("/api/v1/clients/%d/rents", ana.ID)).Body.Bytes()).Data
	require.Len(t, byClient.Items, 1)
	assert.False(t, byClient.Items[0].Open)

	paged := decodeEnvelope[PageResponse[RentResponse]](t, ts.api.Get("/api/v1/rents?limit=1").Body.Bytes()).Data
	assert.Len(t, paged.Items, 1)
	assert.True(t, paged.HasMore)
	assert.NotEmpty(t, paged.NextCursor)
}
