package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/service"
)

func handleListConversations(chats *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		summaries, err := chats.ListForUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// handleMessagePage serves cursor pagination over a conversation's
// history. Cursor query params: before_at (unix nanoseconds), before_id.
func handleMessagePage(messages *service.MessageService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		convID := chi.URLParam(r, "conversationID")

		var before *domain.MessageCursor
		if atStr := r.URL.Query().Get("before_at"); atStr != "" {
			n, err := strconv.ParseInt(atStr, 10, 64)
			if err != nil {
				writeError(w, domain.ErrInvalidInput)
				return
			}
			before = &domain.MessageCursor{
				CreatedAt: time.Unix(0, n).UTC(),
				ID:        r.URL.Query().Get("before_id"),
			}
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		page, err := messages.Page(r.Context(), user.ID, convID, before, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func handleMarkRead(chats *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		convID := chi.URLParam(r, "conversationID")
		if err := chats.MarkRead(r.Context(), convID, user.ID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleGetUser(accounts *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := accounts.GetUser(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func handleFollowers(social *service.SocialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := social.Followers(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"followers": ids})
	}
}

func handleFollowing(social *service.SocialService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := social.Following(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"following": ids})
	}
}
