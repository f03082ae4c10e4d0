package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticAuth is a fixed-token AuthContext for tests.
type staticAuth struct {
	cookie    string
	token     string
	refreshes int
}

func (a *staticAuth) SessionToken() string { return a.cookie }

func (a *staticAuth) CSRFToken(ctx context.Context) (string, error) { return a.token, nil }

func (a *staticAuth) Refresh(ctx context.Context) error {
	a.refreshes++
	return nil
}

func writeAssetFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0644))
	return path
}

func TestCreateAssetSuccess(t *testing.T) {
	var gotRequest struct {
		AssetType       string `json:"assetType"`
		CreationContext struct {
			Creator struct {
				GroupID string `json:"groupId"`
			} `json:"creator"`
			ExpectedPrice int `json:"expectedPrice"`
		} `json:"creationContext"`
		Description string `json:"description"`
		DisplayName string `json:"displayName"`
	}
	var gotFileBytes []byte
	var gotCSRF, gotCookie string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/assets", r.URL.Path)
		gotCSRF = r.Header.Get("X-CSRF-TOKEN")
		if c, err := r.Cookie(sessionCookieName); err == nil {
			gotCookie = c.Value
		}

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &gotRequest))

		file, header, err := r.FormFile("fileContent")
		require.NoError(t, err)
		defer file.Close()
		gotFileBytes, err = io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "shirt.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"operationId":"op-1"}`)
	}))
	defer server.Close()

	auth := &staticAuth{cookie: "cookie-value", token: "csrf-value"}
	client := NewClient(server.URL, server.URL, auth)

	opID, err := client.CreateAsset(context.Background(), CreateRequest{
		DisplayName:   "Cool Shirt",
		Description:   "desc",
		AssetKind:     "shirt",
		DestinationID: "12345",
		FilePath:      writeAssetFile(t, "shirt.png"),
		ExpectedPrice: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, "op-1", opID)

	assert.Equal(t, "csrf-value", gotCSRF)
	assert.Equal(t, "cookie-value", gotCookie)
	assert.Equal(t, "shirt", gotRequest.AssetType)
	assert.Equal(t, "12345", gotRequest.CreationContext.Creator.GroupID)
	assert.Equal(t, 10, gotRequest.CreationContext.ExpectedPrice)
	assert.Equal(t, "Cool Shirt", gotRequest.DisplayName)
	assert.Equal(t, "fake image bytes", string(gotFileBytes))
}

func TestCreateAssetClassifiesMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"insufficient funds", 400, `{"message":"InsufficientFunds"}`, ErrInsufficientFunds},
		{"unauthorized", 400, `{"message":"user is unauthorized"}`, ErrNoPermission},
		{"permission", 400, `{"message":"missing Permission to create"}`, ErrNoPermission},
		{"moderated", 400, `{"message":"asset name was moderated"}`, ErrModerated},
		{"rate limited", 429, `{"message":"TooManyRequests"}`, ErrRateLimited},
		{"auth expired", 403, `{}`, ErrAuthExpired},
		{"server error", 502, `bad gateway`, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
			_, err := client.CreateAsset(context.Background(), CreateRequest{
				AssetKind:     "shirt",
				DestinationID: "1",
				FilePath:      writeAssetFile(t, "a.png"),
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateAssetUnclassifiedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"something else"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	_, err := client.CreateAsset(context.Background(), CreateRequest{
		AssetKind:     "shirt",
		DestinationID: "1",
		FilePath:      writeAssetFile(t, "a.png"),
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "something else", apiErr.Message)
}

func TestPollOperation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/operations/op-1", r.URL.Path)
		io.WriteString(w, `{"done":true,"response":{"assetId":9876543210}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	result, err := client.PollOperation(context.Background(), "op-1")
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, "9876543210", result.AssetID)
}

func TestPollOperationPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"done":false}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	result, err := client.PollOperation(context.Background(), "op-1")
	require.NoError(t, err)
	assert.False(t, result.Done)
}

func TestReleaseAssetSuccess(t *testing.T) {
	var got releasePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/collectibles", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"status":0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	err := client.ReleaseAsset(context.Background(), ReleaseRequest{
		AssetID:       "111",
		DestinationID: "222",
		Name:          "Cool Shirt",
		Price:         10,
	})
	require.NoError(t, err)

	assert.Equal(t, "111", got.TargetID)
	assert.Equal(t, "222", got.CreatorTargetID)
	assert.Equal(t, 10, got.Price)
	assert.Equal(t, 2, got.PublishingType)
	assert.Equal(t, 2, got.ResaleRestriction)
	assert.NotEmpty(t, got.IdempotencyToken)
}

func TestReleaseAssetFreshTokenPerCall(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload releasePayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		tokens = append(tokens, payload.IdempotencyToken)
		io.WriteString(w, `{"status":0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	req := ReleaseRequest{AssetID: "111", DestinationID: "222", Name: "x", Price: 5}
	require.NoError(t, client.ReleaseAsset(context.Background(), req))
	require.NoError(t, client.ReleaseAsset(context.Background(), req))

	require.Len(t, tokens, 2)
	assert.NotEqual(t, tokens[0], tokens[1])
}

func TestReleaseAssetNonZeroStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":12}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	err := client.ReleaseAsset(context.Background(), ReleaseRequest{AssetID: "111"})

	var relErr *ReleaseError
	require.ErrorAs(t, err, &relErr)
	assert.Equal(t, http.StatusOK, relErr.StatusCode)
	assert.Equal(t, 12, relErr.Status)
}

func TestReleaseAssetRetryableStatuses(t *testing.T) {
	for status, want := range map[int]error{
		http.StatusTooManyRequests: ErrRateLimited,
		http.StatusForbidden:       ErrAuthExpired,
	} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
		err := client.ReleaseAsset(context.Background(), ReleaseRequest{AssetID: "111"})
		assert.ErrorIs(t, err, want)
		server.Close()
	}
}

func TestReleaseAssetNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "<html>oops</html>")
	}))
	defer server.Close()

	client := NewClient(server.URL, server.URL, &staticAuth{token: "tok"})
	err := client.ReleaseAsset(context.Background(), ReleaseRequest{AssetID: "111"})

	var relErr *ReleaseError
	require.ErrorAs(t, err, &relErr)
	assert.Equal(t, -1, relErr.Status)
}
