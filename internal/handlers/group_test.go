package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/internal/blob"
	"chatsync/internal/mocks"
	"chatsync/internal/models"
	"chatsync/internal/repositories"
	"chatsync/internal/ws"
)

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "alice")
		c.Next()
	})
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups", handler.ListGroups)
	r.GET("/groups/:group_id/messages", handler.GetMessages)
	r.POST("/groups/:group_id/messages", handler.SendMessage)
	r.DELETE("/groups/:group_id/messages/:message_id", handler.DeleteMessage)
	return r
}

func newGroupFixture() (*mocks.GroupRepositoryMock, *mocks.ConversationRepositoryMock, *mocks.BlobStoreMock, *gin.Engine) {
	groups := new(mocks.GroupRepositoryMock)
	conversations := new(mocks.ConversationRepositoryMock)
	blobs := new(mocks.BlobStoreMock)
	handler := NewGroupHandler(groups, conversations, blobs, ws.NewHub(), nil)
	return groups, conversations, blobs, setupGroupRouter(handler)
}

func testGroup() models.Group {
	return models.Group{ID: "g1", Name: "trip", Members: pq.StringArray{"alice", "bob"}, AdminID: "alice"}
}

func TestCreateGroupSuccess(t *testing.T) {
	groups, _, _, router := newGroupFixture()

	groups.On("CreateGroup", mock.Anything, mock.MatchedBy(func(g models.Group) bool {
		return g.Name == "trip" && g.AdminID == "alice" && g.ID != "" &&
			assert.ObjectsAreEqual([]string(g.Members), []string{"bob", "carol", "alice"})
	})).Return(nil).Once()

	body, contentType := multipartBody(t, map[string]string{
		"name":    "trip",
		"members": "bob,carol",
	}, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "trip", created.Name)

	groups.AssertExpectations(t)
}

func TestCreateGroupRequiresNameAndMembers(t *testing.T) {
	groups, _, _, router := newGroupFixture()

	body, contentType := multipartBody(t, map[string]string{"name": "solo"}, "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	groups.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything)
}

func TestCreateGroupImageUploadFailureAbortsCreation(t *testing.T) {
	groups, _, blobs, router := newGroupFixture()

	blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", &blob.UploadError{Path: "group_images/x", Err: assert.AnError}).Once()

	body, contentType := multipartBody(t, map[string]string{
		"name":    "trip",
		"members": "bob",
	}, "image", "group.png", "image/png")
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	groups.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything)
	blobs.AssertExpectations(t)
}

func TestListGroupsSuccess(t *testing.T) {
	groups, _, _, router := newGroupFixture()

	groups.On("ListGroupsForUser", mock.Anything, "alice").
		Return([]models.Group{testGroup()}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groups.AssertExpectations(t)
}

func TestGetGroupMessagesNotMember(t *testing.T) {
	groups, conversations, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").
		Return(models.Group{ID: "g1", Members: pq.StringArray{"bob", "carol"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/g1/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	conversations.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
}

func TestGetGroupMessagesGroupMissing(t *testing.T) {
	groups, _, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "nope").
		Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/nope/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendGroupMessageSuccess(t *testing.T) {
	groups, conversations, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").Return(testGroup(), nil).Once()
	conversations.On("AppendMessage", mock.Anything, "g1", mock.MatchedBy(func(msg models.Message) bool {
		return msg.Text == "hello group" && msg.SenderID == "alice" && msg.ReceiverID == ""
	})).Return("m1", nil).Once()

	body := bytes.NewBufferString(`{"text":"hello group"}`)
	req := httptest.NewRequest(http.MethodPost, "/groups/g1/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "m1", msg.ID)

	conversations.AssertExpectations(t)
}

func TestSendGroupMessageUploadFailure(t *testing.T) {
	groups, conversations, blobs, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").Return(testGroup(), nil).Once()
	blobs.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", &blob.UploadError{Path: "groups/g1/x", Err: assert.AnError}).Once()

	body, contentType := multipartBody(t, map[string]string{"text": "pic"}, "file", "photo.png", "image/png")
	req := httptest.NewRequest(http.MethodPost, "/groups/g1/messages", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	conversations.AssertNotCalled(t, "AppendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteGroupMessageNotSender(t *testing.T) {
	groups, conversations, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").Return(testGroup(), nil).Once()
	conversations.On("ListMessages", mock.Anything, "g1").
		Return([]models.Message{{ID: "m1", SenderID: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/g1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	conversations.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteGroupMessageSuccess(t *testing.T) {
	groups, conversations, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").Return(testGroup(), nil).Once()
	conversations.On("ListMessages", mock.Anything, "g1").
		Return([]models.Message{{ID: "m1", SenderID: "alice"}}, nil).Once()
	conversations.On("DeleteMessage", mock.Anything, "g1", "m1").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/g1/messages/m1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	conversations.AssertExpectations(t)
}

func TestDeleteGroupMessageMissingIsNoOp(t *testing.T) {
	groups, conversations, _, router := newGroupFixture()

	groups.On("GetGroup", mock.Anything, "g1").Return(testGroup(), nil).Once()
	conversations.On("ListMessages", mock.Anything, "g1").
		Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/g1/messages/gone", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	conversations.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything, mock.Anything)
}
