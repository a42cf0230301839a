package handler

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/goalstake/engine/internal/config"
)

// ModerationError reports which field was rejected and why.
type ModerationError struct {
	Field   string
	Reason  string
	Flagged []string
}

func (e *ModerationError) Error() string {
	return fmt.Sprintf("content moderation failed on %s: %s", e.Field, e.Reason)
}

// ModerationGate screens free text against a local word list before it
// reaches a service. A nil gate lets everything through.
type ModerationGate struct {
	blocked   []string
	maxLength int
}

// NewModerationGate returns nil when moderation is disabled.
func NewModerationGate(cfg config.ModerationConfig) *ModerationGate {
	if !cfg.Enabled {
		return nil
	}
	words := make([]string, 0, len(cfg.BlockedWords))
	for _, w := range cfg.BlockedWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	return &ModerationGate{blocked: words, maxLength: cfg.MaxLength}
}

// Check screens one field. Blocked words match whole words; multi-word
// entries match as a phrase.
func (g *ModerationGate) Check(field, text string) *ModerationError {
	if g == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	if g.maxLength > 0 && utf8.RuneCountInString(text) > g.maxLength {
		return &ModerationError{Field: field, Reason: fmt.Sprintf("longer than %d characters", g.maxLength)}
	}

	normalised := " " + strings.Join(strings.FieldsFunc(strings.ToLower(text), notWordRune), " ") + " "
	var flagged []string
	for _, w := range g.blocked {
		if strings.Contains(normalised, " "+w+" ") {
			flagged = append(flagged, w)
		}
	}
	if len(flagged) > 0 {
		return &ModerationError{
			Field:   field,
			Reason:  "contains inappropriate language: " + strings.Join(flagged, ", "),
			Flagged: flagged,
		}
	}
	return nil
}

// CheckAll stops at the first rejected field. fields alternates name, text.
func (g *ModerationGate) CheckAll(fields ...string) *ModerationError {
	for i := 0; i+1 < len(fields); i += 2 {
		if err := g.Check(fields[i], fields[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func notWordRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= utf8.RuneSelf)
}

func respondModeration(c *gin.Context, err *ModerationError) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
		"success": false,
		"error":   "content moderation failed",
		"code":    "ERR_CONTENT_REJECTED",
		"details": gin.H{"field": err.Field, "reason": err.Reason},
	})
}
