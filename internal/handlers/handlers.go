package handlers

import (
	"database/sql"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"prosodyweb/internal/auth"
	"prosodyweb/internal/forum"
	"prosodyweb/internal/models"
	"prosodyweb/internal/prosody"
)

//go:embed templates/*.html
var templateFS embed.FS

type Handler struct {
	db       *sql.DB
	sessions *auth.Manager
	forum    *forum.Store
	prosody  *prosody.Store
	tpls     *template.Template
	log      zerolog.Logger
}

func New(db *sql.DB, sessions *auth.Manager, forumStore *forum.Store, prosodyStore *prosody.Store, log zerolog.Logger) *Handler {
	tpls := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	return &Handler{
		db:       db,
		sessions: sessions,
		forum:    forumStore,
		prosody:  prosodyStore,
		tpls:     tpls,
		log:      log.With().Str("component", "handlers").Logger(),
	}
}

func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.sessions.CurrentUserID(r); !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// identity resolves the caller for this request. Failures to load the
// user degrade to Anonymous rather than erroring the page.
func (h *Handler) identity(r *http.Request) models.Identity {
	uid, ok := h.sessions.CurrentUserID(r)
	if !ok {
		return models.Anonymous{}
	}
	u, err := h.userByID(r, uid)
	if err != nil {
		return models.Anonymous{}
	}
	return &models.Authenticated{User: u, Lastlog: h.prosody.Lastlog(u.Username)}
}

func (h *Handler) userByID(r *http.Request, id int64) (models.User, error) {
	var u models.User
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, username, email, first_name, last_name, is_active, is_superuser, date_joined, timezone
		FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.IsActive, &u.IsSuperuser, &u.DateJoined, &u.Timezone)
	return u, err
}

// -------- Pages

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.NotFound(w, r)
		return
	}
	boards, err := h.forum.Boards(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("list boards")
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	ident := h.identity(r)
	h.tpls.ExecuteTemplate(w, "home", map[string]any{
		"Title":  "Boards",
		"Ident":  ident,
		"Boards": boards,
	})
}

// Forum routes everything under /forum/:
//
//	/forum/{board}              board view
//	/forum/{board}/new          new topic form + create
//	/forum/{board}/post/{id}    post view with the thread tree
func (h *Handler) Forum(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/forum/"), "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		h.board(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "new":
		h.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
			h.newTopic(w, r, parts[0])
		})(w, r)
	case len(parts) == 3 && parts[1] == "post":
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			h.NotFound(w, r)
			return
		}
		h.post(w, r, parts[0], id)
	default:
		h.NotFound(w, r)
	}
}

func (h *Handler) board(w http.ResponseWriter, r *http.Request, slug string) {
	b, err := h.forum.BoardBySlug(r.Context(), slug)
	if errors.Is(err, sql.ErrNoRows) {
		h.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	topics, err := h.forum.Topics(r.Context(), b.ID)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	h.tpls.ExecuteTemplate(w, "board", map[string]any{
		"Title":  b.Name,
		"Ident":  h.identity(r),
		"Board":  b,
		"Topics": topics,
	})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request, slug string, id int64) {
	p, err := h.forum.PostByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && p.BoardSlug != slug) {
		h.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	thread, err := h.forum.ThreadPosts(r.Context(), p.TopicID)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	// The author's presence comes from the chat server's lastlog store.
	// A coercion fault there is fatal to this request.
	author := &models.Authenticated{
		User:    models.User{Username: p.Author},
		Lastlog: h.prosody.Lastlog(p.Author),
	}
	online, err := author.Online(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("user", p.Author).Msg("lastlog read")
		http.Error(w, "Presence error", http.StatusInternalServerError)
		return
	}
	lastSeen, seen, err := author.LastSeen(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("user", p.Author).Msg("lastlog read")
		http.Error(w, "Presence error", http.StatusInternalServerError)
		return
	}

	h.tpls.ExecuteTemplate(w, "post", map[string]any{
		"Title":    p.Subject,
		"Ident":    h.identity(r),
		"Post":     p,
		"Tree":     forum.RenderTree(thread, p.ID),
		"Online":   online,
		"LastSeen": lastSeen,
		"Seen":     seen,
	})
}

func (h *Handler) newTopic(w http.ResponseWriter, r *http.Request, slug string) {
	b, err := h.forum.BoardBySlug(r.Context(), slug)
	if errors.Is(err, sql.ErrNoRows) {
		h.NotFound(w, r)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "new_topic", map[string]any{
			"Title": "New Topic",
			"Ident": h.identity(r),
			"Board": b,
		})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uid, _ := h.sessions.CurrentUserID(r)
	title := strings.TrimSpace(r.FormValue("title"))
	body := strings.TrimSpace(r.FormValue("body"))
	if title == "" || body == "" {
		http.Error(w, "Title and body required", http.StatusBadRequest)
		return
	}

	postID, err := h.forum.CreateTopic(r.Context(), b.ID, uid, title, body)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/forum/"+b.Slug+"/post/"+strconv.FormatInt(postID, 10), http.StatusSeeOther)
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	uid, _ := h.sessions.CurrentUserID(r)

	parentID, _ := strconv.ParseInt(r.FormValue("parent_id"), 10, 64)
	subject := strings.TrimSpace(r.FormValue("subject"))
	body := strings.TrimSpace(r.FormValue("body"))
	if parentID == 0 || body == "" {
		http.Error(w, "Reply body required", http.StatusBadRequest)
		return
	}
	if subject == "" {
		parent, err := h.forum.PostByID(r.Context(), parentID)
		if err != nil {
			h.NotFound(w, r)
			return
		}
		subject = "Re: " + parent.Subject
	}

	postID, err := h.forum.Reply(r.Context(), parentID, uid, subject, body)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	p, err := h.forum.PostByID(r.Context(), postID)
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/forum/"+p.BoardSlug+"/post/"+strconv.FormatInt(postID, 10), http.StatusSeeOther)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.tpls.ExecuteTemplate(w, "login", map[string]any{
			"Title": "Login",
			"Ident": h.identity(r),
		})
		return
	case http.MethodPost:
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	pass := r.FormValue("password")

	var id int64
	var hash string
	var active bool
	err := h.db.QueryRowContext(r.Context(),
		`SELECT id, password_hash, is_active FROM users WHERE username = ?`, username).
		Scan(&id, &hash, &active)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "Wrong username or password", http.StatusUnauthorized)
		return
	} else if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return
	}

	if !active || !auth.CheckPassword(pass, hash) {
		http.Error(w, "Wrong username or password", http.StatusUnauthorized)
		return
	}

	_, _ = h.db.ExecContext(r.Context(), `DELETE FROM sessions WHERE user_id = ?`, id)

	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	_, _ = h.db.ExecContext(r.Context(),
		`INSERT INTO login_audit(user_id, login_date, ip) VALUES(?,?,?)`,
		id, time.Now(), ip)

	if err := h.sessions.Create(w, id); err != nil {
		http.Error(w, "session error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	h.tpls.ExecuteTemplate(w, "notfound", map[string]any{
		"Title": "Not Found",
		"Ident": h.identity(r),
	})
}
