package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"
	"github.com/zulandar/chatrelay/internal/chat"
	"github.com/zulandar/chatrelay/internal/messaging"
	"github.com/zulandar/chatrelay/internal/ratelimit"
	"github.com/zulandar/chatrelay/internal/validate"
)

// Response messages returned to clients.
const (
	msgSent        = "Message sent successfully"
	msgInvalid     = "The given data was invalid."
	msgRateLimited = "Too many messages. Please wait before sending another message."
	msgSendFailed  = "Failed to send message. Please try again."
	msgFetchFailed = "Failed to fetch messages. Please try again."
)

// Rate-limit response headers.
const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// maxBodyBytes bounds a submission body; content is at most 1000 characters.
const maxBodyBytes = 64 << 10

func handleSend(svc ChatService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		in := readInput(c)
		rcpt, err := svc.Submit(c.Request.Context(), in, identity(c))
		if rcpt.Quota != nil {
			setQuotaHeaders(c, *rcpt.Quota)
		}

		var rl *chat.RateLimitError
		var verr *validate.ValidationError
		switch {
		case err == nil:
			c.JSON(http.StatusCreated, gin.H{
				"status":  "success",
				"message": msgSent,
				"data":    rcpt.Payload,
			})
		case errors.As(err, &rl):
			c.Header(headerRetryAfter, strconv.Itoa(rl.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"message":     msgRateLimited,
				"retry_after": rl.RetryAfter,
			})
		case errors.As(err, &verr):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"status":  "error",
				"message": msgInvalid,
				"errors":  verr.Errors,
			})
		default:
			log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("send message")
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": msgSendFailed,
			})
		}
	}
}

// readInput decodes a JSON or form submission. Anything unreadable is an
// empty input, which fails validation on content.
func readInput(c *gin.Context) validate.Input {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	switch c.ContentType() {
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxBodyBytes); err != nil {
			return validate.Input{}
		}
		return validate.InputFromForm(c.Request.PostForm)
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return validate.Input{}
		}
		return validate.InputFromForm(c.Request.PostForm)
	default:
		body, err := c.GetRawData()
		if err != nil {
			return validate.Input{}
		}
		return validate.ParseInput(body)
	}
}

func setQuotaHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Header(headerLimit, strconv.Itoa(d.Limit))
	c.Header(headerRemaining, strconv.Itoa(d.Remaining))
	c.Header(headerReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func handleMessages(svc ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		channel := c.Param("channel")
		if channel == "" {
			channel = messaging.DefaultChannel
		}

		msgs, err := svc.Fetch(c.Request.Context(), channel, queryLimit(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "error",
				"message": msgFetchFailed,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   msgs,
		})
	}
}

// queryLimit reads ?limit=, clamped to [1, chat.MaxFetch]. Missing or
// malformed values mean the maximum.
func queryLimit(c *gin.Context) int {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return chat.MaxFetch
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return chat.MaxFetch
	}
	return min(max(n, 1), chat.MaxFetch)
}
