package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hongminglow/kaisurf-be/internal/http/respond"
	"github.com/hongminglow/kaisurf-be/internal/models"
	"github.com/hongminglow/kaisurf-be/internal/models/dto"
)

var featuredPosts = []dto.Post{
	{Title: "Wave Riding Tips"},
	{Title: "Newest Surfboards"},
}

// PostsHandler serves the personalized content list.
type PostsHandler struct{}

func NewPostsHandler() *PostsHandler { return &PostsHandler{} }

func (h *PostsHandler) Register(r *mux.Router, gates Gates) {
	r.HandleFunc("/posts", gates.Bearer.Then(h.handleList)).Methods(http.MethodGet)
}

func (h *PostsHandler) handleList(w http.ResponseWriter, _ *http.Request, identity models.Identity) {
	respond.JSON(w, http.StatusOK, dto.PostsResponse{
		User:    identity.AuthUID,
		Message: "Access granted. Listing personalized content.",
		Posts:   featuredPosts,
	})
}
