package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/gateerrors"
	"github.com/facegate/facegate/internal/models"
)

// mockLoginService mocks LoginService for handler tests.
type mockLoginService struct {
	classifyFunc     func(ctx context.Context, req *models.CreateLoginAttemptRequest, image []byte, thresholds models.Thresholds) (*models.LoginResult, error)
	getAttemptFunc   func(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.LoginAttempt, error)
	listAttemptsFunc func(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error)
}

func (m *mockLoginService) ClassifyLogin(ctx context.Context, req *models.CreateLoginAttemptRequest, image []byte, thresholds models.Thresholds) (*models.LoginResult, error) {
	if m.classifyFunc != nil {
		return m.classifyFunc(ctx, req, image, thresholds)
	}

	return nil, nil
}

func (m *mockLoginService) GetAttempt(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.LoginAttempt, error) {
	if m.getAttemptFunc != nil {
		return m.getAttemptFunc(ctx, scope, id)
	}

	return nil, nil
}

func (m *mockLoginService) ListAttempts(ctx context.Context, scope models.Scope, limit, offset int) ([]models.LoginAttempt, error) {
	if m.listAttemptsFunc != nil {
		return m.listAttemptsFunc(ctx, scope, limit, offset)
	}

	return nil, nil
}

func TestLoginHandler_Classify(t *testing.T) {
	t.Run("success returns 200 with the classification", func(t *testing.T) {
		attemptID := uuid.New()
		distance := 0.12

		mock := &mockLoginService{
			classifyFunc: func(_ context.Context, req *models.CreateLoginAttemptRequest, image []byte, thresholds models.Thresholds) (*models.LoginResult, error) {
				assert.True(t, req.Scope.IsSystem())
				assert.Equal(t, []byte("face-bytes"), image)
				assert.Equal(t, handlerTestThresholds, thresholds)

				return &models.LoginResult{
					AttemptID: attemptID,
					Status:    models.AttemptStatusSuccess,
					Distance:  &distance,
				}, nil
			},
		}
		h := NewLoginHandler(mock, nil)

		req := multipartRequest(t, "http://test/v1/auth/login", nil, []byte("face-bytes"))
		rec := httptest.NewRecorder()

		serveSystemScoped(h.Classify, rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var result models.LoginResult

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, attemptID, result.AttemptID)
		assert.Equal(t, models.AttemptStatusSuccess, result.Status)
	})

	t.Run("image_ref form field is forwarded", func(t *testing.T) {
		var captured *models.CreateLoginAttemptRequest

		mock := &mockLoginService{
			classifyFunc: func(_ context.Context, req *models.CreateLoginAttemptRequest, _ []byte, _ models.Thresholds) (*models.LoginResult, error) {
				captured = req

				return &models.LoginResult{AttemptID: uuid.New(), Status: models.AttemptStatusNoMatch}, nil
			},
		}
		h := NewLoginHandler(mock, nil)

		req := multipartRequest(t, "http://test/v1/auth/login",
			map[string]string{"image_ref": "s3://captures/abc"}, []byte("face-bytes"))
		rec := httptest.NewRecorder()

		serveSystemScoped(h.Classify, rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		require.NotNil(t, captured.ImageRef)
		assert.Equal(t, "s3://captures/abc", *captured.ImageRef)
	})

	t.Run("missing image returns bad request without calling the service", func(t *testing.T) {
		called := false

		mock := &mockLoginService{
			classifyFunc: func(context.Context, *models.CreateLoginAttemptRequest, []byte, models.Thresholds) (*models.LoginResult, error) {
				called = true

				return nil, nil
			},
		}
		h := NewLoginHandler(mock, nil)

		req := multipartRequest(t, "http://test/v1/auth/login", nil, nil)
		rec := httptest.NewRecorder()

		serveSystemScoped(h.Classify, rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, called)
	})

	t.Run("detection failure returns 422 with the attempt ID", func(t *testing.T) {
		attemptID := uuid.New()

		mock := &mockLoginService{
			classifyFunc: func(context.Context, *models.CreateLoginAttemptRequest, []byte, models.Thresholds) (*models.LoginResult, error) {
				return &models.LoginResult{AttemptID: attemptID, Status: models.AttemptStatusError},
					gateerrors.ErrDetectionFailed
			},
		}
		h := NewLoginHandler(mock, nil)

		req := multipartRequest(t, "http://test/v1/auth/login", nil, []byte("no-face"))
		rec := httptest.NewRecorder()

		serveSystemScoped(h.Classify, rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var result models.LoginResult

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, attemptID, result.AttemptID)
		assert.Equal(t, models.AttemptStatusError, result.Status)
	})

	t.Run("unexpected service error returns 500", func(t *testing.T) {
		mock := &mockLoginService{
			classifyFunc: func(context.Context, *models.CreateLoginAttemptRequest, []byte, models.Thresholds) (*models.LoginResult, error) {
				return nil, assert.AnError
			},
		}
		h := NewLoginHandler(mock, nil)

		req := multipartRequest(t, "http://test/v1/auth/login", nil, []byte("face-bytes"))
		rec := httptest.NewRecorder()

		serveSystemScoped(h.Classify, rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestLoginHandler_GetAttempt(t *testing.T) {
	t.Run("invalid UUID returns bad request", func(t *testing.T) {
		h := NewLoginHandler(&mockLoginService{}, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/auth/attempts/not-a-uuid", http.NoBody)
		req.SetPathValue("id", "not-a-uuid")
		rec := httptest.NewRecorder()

		serveSystemScoped(h.GetAttempt, rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("not found maps to 404", func(t *testing.T) {
		mock := &mockLoginService{
			getAttemptFunc: func(context.Context, models.Scope, uuid.UUID) (*models.LoginAttempt, error) {
				return nil, gateerrors.NewNotFoundError("login attempt", "login attempt not found")
			},
		}
		h := NewLoginHandler(mock, nil)

		id := uuid.New()
		req := httptest.NewRequest(http.MethodGet, "http://test/v1/auth/attempts/"+id.String(), http.NoBody)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		serveSystemScoped(h.GetAttempt, rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("found returns the attempt", func(t *testing.T) {
		id := uuid.New()

		mock := &mockLoginService{
			getAttemptFunc: func(_ context.Context, scope models.Scope, gotID uuid.UUID) (*models.LoginAttempt, error) {
				assert.True(t, scope.IsSystem())
				assert.Equal(t, id, gotID)

				return &models.LoginAttempt{ID: id, InitialStatus: models.AttemptStatusSuccess}, nil
			},
		}
		h := NewLoginHandler(mock, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/auth/attempts/"+id.String(), http.NoBody)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()

		serveSystemScoped(h.GetAttempt, rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var attempt models.LoginAttempt

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &attempt))
		assert.Equal(t, id, attempt.ID)
	})
}

func TestLoginHandler_ListAttempts(t *testing.T) {
	t.Run("pagination parameters are forwarded", func(t *testing.T) {
		var gotLimit, gotOffset int

		mock := &mockLoginService{
			listAttemptsFunc: func(_ context.Context, _ models.Scope, limit, offset int) ([]models.LoginAttempt, error) {
				gotLimit = limit
				gotOffset = offset

				return []models.LoginAttempt{}, nil
			},
		}
		h := NewLoginHandler(mock, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/auth/attempts?limit=25&offset=50", http.NoBody)
		rec := httptest.NewRecorder()

		serveSystemScoped(h.ListAttempts, rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 25, gotLimit)
		assert.Equal(t, 50, gotOffset)
	})

	t.Run("invalid limit returns bad request", func(t *testing.T) {
		h := NewLoginHandler(&mockLoginService{}, nil)

		req := httptest.NewRequest(http.MethodGet, "http://test/v1/auth/attempts?limit=zero", http.NoBody)
		rec := httptest.NewRecorder()

		serveSystemScoped(h.ListAttempts, rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
