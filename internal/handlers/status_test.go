package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/internal/blob"
	"chatsync/internal/mocks"
	"chatsync/internal/models"
)

func setupStatusRouter(handler *StatusHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/statuses", handler.PostStatus)
	r.GET("/statuses", handler.ListStatuses)
	return r
}

func TestPostStatusSuccess(t *testing.T) {
	statuses := new(mocks.StatusRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	router := setupStatusRouter(NewStatusHandler(statuses, blobs, nil))

	blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("http://files/statuses/alice/1_day.png", nil).Once()
	statuses.On("AppendStatus", mock.Anything, mock.MatchedBy(func(s models.Status) bool {
		return s.UserID == "alice" && s.ImageURL == "http://files/statuses/alice/1_day.png" && s.ID != ""
	})).Return(nil).Once()

	body, contentType := multipartBody(t, nil, "image", "day.png", "image/png")
	req := httptest.NewRequest(http.MethodPost, "/statuses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	statuses.AssertExpectations(t)
	blobs.AssertExpectations(t)
}

func TestPostStatusRequiresImage(t *testing.T) {
	statuses := new(mocks.StatusRepositoryMock)
	router := setupStatusRouter(NewStatusHandler(statuses, new(mocks.BlobStoreMock), nil))

	body, contentType := multipartBody(t, map[string]string{"caption": "no image"}, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/statuses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	statuses.AssertNotCalled(t, "AppendStatus", mock.Anything, mock.Anything)
}

func TestPostStatusUploadFailure(t *testing.T) {
	statuses := new(mocks.StatusRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	router := setupStatusRouter(NewStatusHandler(statuses, blobs, nil))

	blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", &blob.UploadError{Path: "statuses/alice/x", Err: assert.AnError}).Once()

	body, contentType := multipartBody(t, nil, "image", "day.png", "image/png")
	req := httptest.NewRequest(http.MethodPost, "/statuses", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	statuses.AssertNotCalled(t, "AppendStatus", mock.Anything, mock.Anything)
}

func TestListStatusesSuccess(t *testing.T) {
	statuses := new(mocks.StatusRepositoryMock)
	router := setupStatusRouter(NewStatusHandler(statuses, new(mocks.BlobStoreMock), nil))

	statuses.On("ListStatuses", mock.Anything).
		Return([]models.Status{{ID: "s1", UserID: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/statuses", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	statuses.AssertExpectations(t)
}
