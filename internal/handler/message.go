package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fridgedoor/internal/model"
)

// リクエストボディサイズを1MBに制限
const maxRequestBodyBytes = 1 << 20

// CreateMessage handles POST /messages
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)
	logger.Debug("[POST /messages] Request received", zap.String("remote_addr", r.RemoteAddr))

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	var req model.NewMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Info("[POST /messages] ❌ Bad Request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		logger.Info("[POST /messages] ❌ Bad Request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Messages.Create(r.Context(), req)
	if err != nil {
		logger.Error("[POST /messages] ❌ Database error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to create message")
		return
	}

	if res.Source == model.SourceEchoed {
		// 作成自体は成功しているので 201 を返し、送信内容をそのまま返す
		logger.Warn("[POST /messages] ⚠️ Read-back failed, echoing submitted message",
			zap.Int64("id", res.Message.ID), zap.Error(res.ReadErr))
	}
	h.Metrics.messageCreated(res.Source)

	logger.Info("[POST /messages] ✅ Created message",
		zap.Int64("id", res.Message.ID), zap.String("source", string(res.Source)))

	w.Header().Set("Location", "/messages/"+strconv.FormatInt(res.Message.ID, 10))
	w.Header().Set("X-Message-Source", string(res.Source))
	writeJSON(w, http.StatusCreated, res.Message)
}

// ListMessages handles GET /messages?count=&since_id=&include_expired=
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		logger.Info("[GET /messages] ❌ Bad Request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgList, err := h.Messages.List(r.Context(), q)
	if err != nil {
		logger.Error("[GET /messages] ❌ Database error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	logger.Debug("[GET /messages] ✅ Returned messages",
		zap.Int("count", len(msgList)), zap.Int64("since_id", q.SinceID))

	writeJSON(w, http.StatusOK, msgList)
}

var (
	errInvalidCount          = errors.New("count must be a non-negative integer")
	errInvalidSinceID        = errors.New("since_id must be a non-negative integer")
	errInvalidIncludeExpired = errors.New("include_expired must be 0, 1, true or false")
)

func parseListQuery(values url.Values) (model.ListQuery, error) {
	q := model.DefaultListQuery()

	if s := values.Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, errInvalidCount
		}
		q.Count = n
	}

	if s := values.Get("since_id"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return q, errInvalidSinceID
		}
		q.SinceID = n
	}

	if s := values.Get("include_expired"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, errInvalidIncludeExpired
		}
		q.IncludeExpired = b
	}

	return q, nil
}

// GetMessage handles GET /messages/{id}
//
// A missing id is answered like any other storage failure (500). The
// repository error still wraps sql.ErrNoRows.
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	id, ok := messageID(w, r)
	if !ok {
		return
	}

	msg, err := h.Messages.Get(r.Context(), id)
	if err != nil {
		logger.Error("[GET /messages/{id}] ❌ Database error", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// RandomMessage handles GET /messages/random
func (h *Handler) RandomMessage(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	msg, err := h.Messages.Random(r.Context())
	if err != nil {
		logger.Error("[GET /messages/random] ❌ Database error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	logger.Debug("[GET /messages/random] ✅ Returned message", zap.Int64("id", msg.ID))
	writeJSON(w, http.StatusOK, msg)
}

// DeleteMessage handles DELETE /messages/{id}
// 物理削除はせず expires_at を現在時刻にする。存在しない id でも 204 を返す
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	logger := h.requestLogger(r)

	id, ok := messageID(w, r)
	if !ok {
		return
	}

	if err := h.Messages.Expire(r.Context(), id); err != nil {
		logger.Error("[DELETE /messages/{id}] ❌ Database error", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to delete message")
		return
	}

	logger.Info("[DELETE /messages/{id}] ✅ Expired message", zap.Int64("id", id))
	w.WriteHeader(http.StatusNoContent)
}

func messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message id")
		return 0, false
	}
	return id, true
}
