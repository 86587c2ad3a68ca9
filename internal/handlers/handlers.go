package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"hintwheel/internal/constants"
	"hintwheel/internal/locks"
	"hintwheel/internal/models"
	"hintwheel/internal/quota"
	"hintwheel/internal/selection"
	"hintwheel/internal/store"
	"hintwheel/internal/util"
)

// API carries the wired stores, policies and registries behind the
// HTTP surface.
type API struct {
	Hints   *store.HintStore
	Users   *store.UserStore
	History *store.HistoryStore
	Picker  *selection.Engine

	SpinPolicy quota.Policy
	AddPolicy  quota.Policy

	UserLocks *locks.Registry

	AdminPassword string
	IsProduction  bool
	StartTime     time.Time

	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	limiterMu sync.RWMutex
	limiters  map[string]*limiterEntry
}

type hintRequest struct {
	Faculty  string `json:"faculty"`
	Text     string `json:"text"`
	Password string `json:"password"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func nullableMillis(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func hoursUntil(deadline, now int64) int64 {
	millisPerHour := time.Hour.Milliseconds()
	return (deadline - now + millisPerHour - 1) / millisPerHour
}

func (a *API) isAdmin(password string) bool {
	if a.AdminPassword == "" || password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.AdminPassword)) == 1
}

func requireUserID(c *gin.Context) (string, bool) {
	userID := c.GetHeader(constants.UserIDHeader)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User ID is required."})
		return "", false
	}
	return userID, true
}

// UserStatus reports both quota standings without consuming anything.
// Expiry is applied to the view only; nothing is persisted here.
func (a *API) UserStatus(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := a.Users.Get(c.Request.Context(), userID)
	if err != nil {
		util.LogWarn("Failed to load user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load user status."})
		return
	}

	now := nowMillis()
	spin := a.SpinPolicy.Status(quota.State{Count: user.SpinCount, WindowStart: user.SpinWindowStart}, now)
	add := a.AddPolicy.Status(quota.State{Count: user.AddCount, WindowStart: user.AddWindowStart}, now)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"spin_status": gin.H{
			"currentSpins":    spin.Count,
			"lastSpinTime":    spin.WindowStart,
			"spinsLeft":       spin.Remaining,
			"cooldownActive":  spin.CooldownActive,
			"cooldownEndTime": nullableMillis(spin.CooldownEndsAt),
		},
		"add_status": gin.H{
			"currentAdds":     add.Count,
			"lastAddTime":     add.WindowStart,
			"addsLeft":        add.Remaining,
			"cooldownActive":  add.CooldownActive,
			"cooldownEndTime": nullableMillis(add.CooldownEndsAt),
		},
	})
}

// RandomHint consumes one spin and serves a random eligible hint. The
// spin is consumed before selection, so a 404 still burns a slot: the
// wheel has turned from the user's point of view.
func (a *API) RandomHint(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// exclude_id is an unauthenticated UX hint; a bad value is ignored
	excludeID, _ := strconv.ParseInt(c.Query("exclude_id"), 10, 64)

	release := a.UserLocks.Acquire(userID)

	user, err := a.Users.Get(ctx, userID)
	if err != nil {
		release()
		util.LogWarn("Failed to load user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load user."})
		return
	}

	now := nowMillis()
	decision := a.SpinPolicy.CheckAndAdvance(quota.State{Count: user.SpinCount, WindowStart: user.SpinWindowStart}, now)
	if !decision.Allowed {
		release()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error": fmt.Sprintf("You have used all %d spins. Please wait about %d hours.",
				a.SpinPolicy.MaxActions, hoursUntil(decision.CooldownEndsAt, now)),
			"cooldown_end_timestamp": decision.CooldownEndsAt,
			"spins_left":             0,
			"cooldown_active":        true,
		})
		return
	}

	user.SpinCount = decision.State.Count
	user.SpinWindowStart = decision.State.WindowStart
	if err := a.Users.Save(ctx, user); err != nil {
		// logged-only: the spin already happened from the user's perspective
		util.LogWarn("Failed to persist spin quota for user %s: %v", userID, err)
	}
	release()

	hint, err := a.Picker.PickRandom(ctx, userID, excludeID, now)
	if errors.Is(err, selection.ErrNoEligibleHints) {
		c.JSON(http.StatusNotFound, gin.H{
			"success":                false,
			"error":                  "No new hint is available to spin right now.",
			"spins_left":             decision.Remaining,
			"cooldown_active":        false,
			"cooldown_end_timestamp": nil,
		})
		return
	}
	if err != nil {
		util.LogWarn("Failed to pick a hint for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to pick a hint."})
		return
	}

	if err := a.History.Append(ctx, &models.Activity{
		UserID:       userID,
		HintID:       hint.ID,
		HintText:     hint.Text,
		ActivityType: constants.ActivitySpin,
		Timestamp:    now,
	}); err != nil {
		util.LogWarn("Failed to record pick history for user %s: %v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                true,
		"hint":                   gin.H{"id": hint.ID, "text": hint.Text, "faculty": hint.Faculty},
		"spins_left":             decision.Remaining,
		"cooldown_active":        decision.CooldownActive,
		"cooldown_end_timestamp": nullableMillis(decision.CooldownEndsAt),
	})
}

// AddHint accepts a new hint from an admin (valid password in the
// body, no quota) or from a quota-gated user. A non-matching password
// falls through to the user path rather than returning 401, so the
// endpoint does not leak whether a guessed secret was close.
func (a *API) AddHint(c *gin.Context) {
	var req hintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body."})
		return
	}

	userID := c.GetHeader(constants.UserIDHeader)
	faculty := strings.TrimSpace(req.Faculty)
	text := strings.TrimSpace(req.Text)

	if req.Password != "" && a.isAdmin(req.Password) {
		a.addHintAsAdmin(c, userID, faculty, text)
		return
	}
	a.addHintAsUser(c, userID, faculty, text)
}

func (a *API) addHintAsAdmin(c *gin.Context, userID, faculty, text string) {
	ctx := c.Request.Context()

	if faculty == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Faculty is required."})
		return
	}
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Hint text is required."})
		return
	}

	duplicate, err := a.Hints.TextExists(ctx, text, 0)
	if err != nil {
		util.LogWarn("Failed to check hint uniqueness: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to check hint."})
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": fmt.Sprintf("Hint '%s : %s' already exists.", faculty, text)})
		return
	}

	hint, err := a.Hints.Create(ctx, faculty, text)
	if err != nil {
		util.LogWarn("Failed to insert admin hint: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save hint."})
		return
	}

	actor := userID
	if actor == "" {
		actor = constants.AdminActor
	}
	if err := a.History.Append(ctx, &models.Activity{
		UserID:       actor,
		HintID:       hint.ID,
		HintText:     text,
		ActivityType: constants.ActivityAdd,
		Timestamp:    nowMillis(),
		OwnerUserID:  actor,
	}); err != nil {
		util.LogWarn("Failed to record admin add history: %v", err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Hint added (admin).",
		"id":      hint.ID,
		"faculty": faculty,
		"text":    text,
	})
}

func (a *API) addHintAsUser(c *gin.Context, userID, faculty, text string) {
	ctx := c.Request.Context()

	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "User ID is required."})
		return
	}
	if faculty == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Faculty is required."})
		return
	}
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Hint text is required."})
		return
	}

	// duplicate check runs before the gate so a rejected duplicate
	// does not burn a quota slot
	duplicate, err := a.Hints.TextExists(ctx, text, 0)
	if err != nil {
		util.LogWarn("Failed to check hint uniqueness: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to check hint."})
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": fmt.Sprintf("Hint '%s : %s' already exists.", faculty, text)})
		return
	}

	release := a.UserLocks.Acquire(userID)

	user, err := a.Users.Get(ctx, userID)
	if err != nil {
		release()
		util.LogWarn("Failed to load user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load user."})
		return
	}

	now := nowMillis()
	decision := a.AddPolicy.CheckAndAdvance(quota.State{Count: user.AddCount, WindowStart: user.AddWindowStart}, now)
	if !decision.Allowed {
		release()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error": fmt.Sprintf("You have added %d hints already. Please wait about %d hours.",
				a.AddPolicy.MaxActions, hoursUntil(decision.CooldownEndsAt, now)),
			"cooldown_end_timestamp": decision.CooldownEndsAt,
			"adds_left":              0,
			"cooldown_active":        true,
		})
		return
	}

	user.AddCount = decision.State.Count
	user.AddWindowStart = decision.State.WindowStart
	if err := a.Users.Save(ctx, user); err != nil {
		util.LogWarn("Failed to persist add quota for user %s: %v", userID, err)
	}
	release()

	hint, err := a.Hints.Create(ctx, faculty, text)
	if err != nil {
		util.LogWarn("Failed to insert hint for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save hint."})
		return
	}

	if err := a.History.Append(ctx, &models.Activity{
		UserID:       userID,
		HintID:       hint.ID,
		HintText:     text,
		ActivityType: constants.ActivityAdd,
		Timestamp:    now,
		OwnerUserID:  userID,
	}); err != nil {
		util.LogWarn("Failed to record add history for user %s: %v", userID, err)
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":                true,
		"message":                "Hint added!",
		"id":                     hint.ID,
		"faculty":                faculty,
		"text":                   text,
		"adds_left":              decision.Remaining,
		"cooldown_end_timestamp": nullableMillis(decision.CooldownEndsAt),
		"cooldown_active":        decision.CooldownActive,
	})
}

func (a *API) authenticateAdmin(c *gin.Context, password string) bool {
	if !a.isAdmin(password) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized: invalid admin password."})
		return false
	}
	return true
}

func (a *API) AdminListHints(c *gin.Context) {
	var req passwordRequest
	_ = c.ShouldBindJSON(&req)
	if !a.authenticateAdmin(c, req.Password) {
		return
	}

	hints, err := a.Hints.All(c.Request.Context())
	if err != nil {
		util.LogWarn("Failed to list hints: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to list hints."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hints": hints})
}

func (a *API) AdminDeleteHint(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid hint id."})
		return
	}

	var req passwordRequest
	_ = c.ShouldBindJSON(&req)
	if !a.authenticateAdmin(c, req.Password) {
		return
	}

	found, err := a.Hints.Delete(c.Request.Context(), id)
	if err != nil {
		util.LogWarn("Failed to delete hint %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete hint."})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Hint not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Deleted hint %d.", id)})
}

func (a *API) AdminUpdateHint(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid hint id."})
		return
	}

	var req hintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body."})
		return
	}
	if !a.authenticateAdmin(c, req.Password) {
		return
	}

	faculty := strings.TrimSpace(req.Faculty)
	text := strings.TrimSpace(req.Text)
	if faculty == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Faculty is required."})
		return
	}
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Hint text is required."})
		return
	}

	ctx := c.Request.Context()
	duplicate, err := a.Hints.TextExists(ctx, text, id)
	if err != nil {
		util.LogWarn("Failed to check hint uniqueness: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to check hint."})
		return
	}
	if duplicate {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": fmt.Sprintf("Hint '%s : %s' already exists.", faculty, text)})
		return
	}

	found, err := a.Hints.Update(ctx, id, faculty, text)
	if err != nil {
		util.LogWarn("Failed to update hint %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update hint."})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Hint not found."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Updated hint %d.", id),
		"updatedHint": gin.H{"id": id, "faculty": faculty, "text": text},
	})
}

// SpinHistory returns the user's latest 20 activities, newest first.
func (a *API) SpinHistory(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	entries, err := a.History.Recent(c.Request.Context(), userID, 20)
	if err != nil {
		util.LogWarn("Failed to load history for user %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load spin history."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": entries})
}

func (a *API) Healthz(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	ctx := c.Request.Context()
	hintCount, err := a.Hints.Count(ctx)
	if err != nil {
		util.LogWarn("Failed to count hints for healthz: %v", err)
	}
	userCount, err := a.Users.Count(ctx)
	if err != nil {
		util.LogWarn("Failed to count users for healthz: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[a.IsProduction],
		"hints":           hintCount,
		"users":           userCount,
		"active_limiters": a.limiterCount(),
		"active_locks":    a.UserLocks.Len(),
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(time.Since(a.StartTime)),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
