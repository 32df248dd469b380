package deals_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/go-underwriter/auth"
	"github.com/jrsteele09/go-underwriter/deals"
	apperrors "github.com/jrsteele09/go-underwriter/internal/errors"
	"github.com/jrsteele09/go-underwriter/internal/navigation"
	"github.com/jrsteele09/go-underwriter/internal/testbackend"
	"github.com/jrsteele09/go-underwriter/token"
	"github.com/jrsteele09/go-underwriter/token/refresh"
	"github.com/jrsteele09/go-underwriter/tokenstore/repofake"
	"github.com/stretchr/testify/require"
)

type env struct {
	backend *testbackend.Backend
	store   *repofake.FakeStore
	session *auth.Service
	nav     *navigation.Recorder
	client  *deals.Client
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		backend: testbackend.New(t),
		store:   repofake.NewFakeStore(),
		nav:     &navigation.Recorder{},
	}
	e.backend.AddAccount("alice@example.com", "Alice", "pw")
	session, err := auth.NewService(e.store, e.backend.URL())
	require.NoError(t, err)
	session.Init()
	require.NoError(t, session.Login(context.Background(), "alice@example.com", "pw"))
	e.session = session

	httpClient := token.NewHTTPClient(session, refresh.NewManager(session), e.nav)
	e.client = deals.NewClient(e.backend.URL(), httpClient, e.store)
	return e
}

func completeSubmission() deals.Submission {
	assumptions := deals.DefaultAssumptions()
	assumptions.AskingPrice = 1850000
	return deals.NewSubmission(
		deals.PropertyDetails{"address": "1 Main St", "units": 24},
		deals.T12Data{"noi": 124000},
		deals.RentRollData{"units": 24, "occupancy": 0.95},
		deals.DefaultBuyBox(),
		assumptions,
	)
}

func TestClient_SubmitListGetDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	analysis, err := e.client.Submit(ctx, completeSubmission())
	require.NoError(t, err)
	require.Equal(t, deals.DecisionPass, analysis.Decision)
	require.NotEmpty(t, analysis.ID)
	require.NotNil(t, analysis.Metrics)
	require.InDelta(t, 6.7, analysis.Metrics.CapRate, 0.001)

	list, err := e.client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, analysis.ID, list[0].ID)
	require.Equal(t, deals.DecisionPass, list[0].DealData.Decision)
	require.NotNil(t, list[0].UserData.BuyBox)
	require.Equal(t, 1980, list[0].UserData.BuyBox.MinYearBuilt)

	deal, err := e.client.Get(ctx, analysis.ID)
	require.NoError(t, err)
	require.Equal(t, analysis.ID, deal.ID)

	require.NoError(t, e.client.Delete(ctx, analysis.ID))
	_, err = e.client.Get(ctx, analysis.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	require.ErrorIs(t, err, apperrors.ErrRequestFailed)
}

func TestClient_SubmitErrors(t *testing.T) {
	t.Run("backend message is surfaced", func(t *testing.T) {
		e := newEnv(t)
		sub := completeSubmission()
		sub.T12Data = nil

		_, err := e.client.Submit(context.Background(), sub)
		var reqErr *deals.RequestError
		require.ErrorAs(t, err, &reqErr)
		require.Equal(t, http.StatusUnprocessableEntity, reqErr.Status)
		require.Equal(t, "t12Data is required", reqErr.Message)
	})

	t.Run("invalid assumptions never leave the client", func(t *testing.T) {
		e := newEnv(t)
		sub := completeSubmission()
		sub.UserData.Assumptions.DownPayment = 150

		_, err := e.client.Submit(context.Background(), sub)
		require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
		require.Zero(t, e.backend.DealCount())
	})

	t.Run("expired session fails with authentication expired", func(t *testing.T) {
		e := newEnv(t)
		e.backend.Configure(func(b *testbackend.Behaviour) { b.FailRefresh = true })
		e.backend.ExpireAccessTokens()

		_, err := e.client.List(context.Background())
		require.ErrorIs(t, err, token.ErrAuthenticationExpired)
		require.Equal(t, auth.StateUnauthenticated, e.session.State())
		require.Equal(t, navigation.Root, e.nav.Last())
	})
}

func TestClient_ListRecoversFromExpiredToken(t *testing.T) {
	e := newEnv(t)
	e.backend.SeedDeal(map[string]any{"_id": "d1", "dealData": map[string]any{"decision": "FAIL"}})
	e.backend.ExpireAccessTokens()

	list, err := e.client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int32(1), e.backend.RefreshCalls.Load())
}

func TestClient_ListNonArrayIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deals":null}`))
	}))
	t.Cleanup(srv.Close)

	client := deals.NewClient(srv.URL, srv.Client(), repofake.NewFakeStore())
	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)
}

func TestClient_Uploads(t *testing.T) {
	e := newEnv(t)

	t12, err := e.client.UploadT12(context.Background(), "t12.xlsx", strings.NewReader("income,expenses"))
	require.NoError(t, err)
	require.Equal(t, "t12.xlsx", t12["fileName"])
	require.Equal(t, "t12", t12["kind"])

	rent, err := e.client.UploadRentRoll(context.Background(), "rent.csv", strings.NewReader("unit,rent"))
	require.NoError(t, err)
	require.Equal(t, "rent", rent["kind"])
}

func TestClient_LookupProperty(t *testing.T) {
	e := newEnv(t)

	details, err := e.client.LookupProperty(context.Background(), "1 Main St, Austin TX")
	require.NoError(t, err)
	require.Equal(t, "1 Main St, Austin TX", details["address"])
	require.EqualValues(t, 24, details["units"])

	stored, ok := e.store.Get(deals.KeyAddress)
	require.True(t, ok)
	require.Equal(t, "1 Main St, Austin TX", stored)

	_, err = e.client.LookupProperty(context.Background(), "   ")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"message first", `{"message":"m","error":"e"}`, "m"},
		{"then error", `{"error":"e","data":{"message":"dm"}}`, "e"},
		{"then data.message", `{"data":{"message":"dm"}}`, "dm"},
		{"then data", `{"data":"plain"}`, "plain"},
		{"empty object", `{}`, "Analysis failed with status 502"},
		{"text body", `Bad Gateway`, "Bad Gateway"},
		{"empty body", ``, "Analysis failed with status 502"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, deals.ErrorMessage("Analysis", 502, []byte(tc.body)))
		})
	}
}
