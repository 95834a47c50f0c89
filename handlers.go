package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"xlsviz/models"
	"xlsviz/pkg/access"
	"xlsviz/pkg/analysis"
	"xlsviz/pkg/identity"
	"xlsviz/pkg/ingest"
	"xlsviz/pkg/insights"
	"xlsviz/pkg/sheet"
	"xlsviz/pkg/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const identityKey = "identity"

// server holds everything the handlers need.
type server struct {
	cfg      Config
	db       *gorm.DB
	issuer   *identity.Issuer
	files    *ingest.Service
	analyses *analysis.Service
	insights *insights.Service
	stats    *store.Stats
	limiter  *uploadLimiter
}

func newServer(cfg Config, db *gorm.DB) *server {
	fileStore := store.NewFiles(db)
	var llm insights.Completer
	if cfg.OpenAIKey != "" {
		llm = insights.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	return &server{
		cfg:      cfg,
		db:       db,
		issuer:   identity.NewIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL),
		files:    ingest.NewService(fileStore),
		analyses: analysis.NewService(fileStore, store.NewAnalyses(db)),
		insights: insights.NewService(llm),
		stats:    store.NewStats(db),
		limiter:  newUploadLimiter(cfg.UploadRate, cfg.UploadBurst),
	}
}

func setupRoutes(r *gin.Engine, s *server) {
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
	})

	authRoutes := api.Group("/auth")
	authRoutes.POST("/register", s.registerHandler)
	authRoutes.POST("/login", s.loginHandler)
	authRoutes.POST("/refresh", s.refreshHandler)
	authRoutes.POST("/revoke_refresh", s.revokeRefreshHandler)

	authGroup := api.Group("")
	authGroup.Use(s.jwtAuthMiddleware())
	authGroup.GET("/auth/me", s.meHandler)

	authGroup.POST("/files/upload", s.limiter.middleware(), s.uploadFileHandler)
	authGroup.GET("/files/history", s.listFilesHandler)
	authGroup.GET("/files/:fileId", s.getFileHandler)
	authGroup.DELETE("/files/:fileId", s.deleteFileHandler)

	authGroup.POST("/analysis", s.createAnalysisHandler)
	authGroup.GET("/analysis/:fileId", s.listAnalysesHandler)

	authGroup.POST("/ai/insights/:fileId", s.insightsHandler)

	admin := authGroup.Group("/admin")
	admin.Use(requireAdmin())
	admin.GET("/users", s.adminUsersHandler)
	admin.GET("/usage", s.adminUsageHandler)

	if s.cfg.StaticDir != "" {
		serveFrontend(r, s.cfg.StaticDir)
	}
}

// serveFrontend serves the built single page app, falling back to index.html
// for any non-API path.
func serveFrontend(r *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		p := filepath.Join(dir, filepath.Clean("/"+c.Request.URL.Path))
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			c.File(p)
			return
		}
		c.File(index)
	})
}

func (s *server) jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := identity.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			respondError(c, err)
			return
		}
		id, err := s.issuer.Verify(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		// the role on record wins over the one in the token
		user, err := findUser(s.db.WithContext(c.Request.Context()), id.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(identityKey, access.Identity{ID: user.ID, Role: user.RoleName()})
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// currentIdentity returns the caller set by jwtAuthMiddleware.
func currentIdentity(c *gin.Context) access.Identity {
	v, _ := c.Get(identityKey)
	id, _ := v.(access.Identity)
	return id
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserView(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.RoleName(), CreatedAt: u.CreatedAt}
}

// issueSession returns an access token plus a refresh token for user.
func (s *server) issueSession(user *models.User) (gin.H, error) {
	token, err := s.issuer.Issue(access.Identity{ID: user.ID, Role: user.RoleName()})
	if err != nil {
		return nil, err
	}
	refresh, err := createRefreshToken(s.db, user.ID, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return gin.H{"token": token, "refresh_token": refresh, "user": toUserView(user)}, nil
}

func (s *server) registerHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Name     string `json:"name"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := RegisterUser(s.db.WithContext(c.Request.Context()), req.Email, req.Name, req.Password, access.RoleUser)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := s.issueSession(user)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *server) loginHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(s.db.WithContext(c.Request.Context()), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	resp, err := s.issueSession(user)
	if err != nil {
		respondError(c, err)
		return
	}
	resp["message"] = "login successful"
	c.JSON(http.StatusOK, resp)
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func (s *server) refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, next, err := rotateRefreshToken(s.db.WithContext(c.Request.Context()), req.RefreshToken, s.cfg.RefreshTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	token, err := s.issuer.Issue(access.Identity{ID: user.ID, Role: user.RoleName()})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "refresh_token": next})
}

func (s *server) revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := revokeRefreshToken(s.db.WithContext(c.Request.Context()), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func (s *server) meHandler(c *gin.Context) {
	user, err := findUser(s.db.WithContext(c.Request.Context()), currentIdentity(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUserView(user))
}

// fileSummary is a file record without its rows, as shown in upload history.
type fileSummary struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Columns      []string  `json:"columns"`
	RowCount     int       `json:"rowCount"`
}

// fileDetail adds the sample rows; FullData is every parsed row right after
// an upload and the sample afterwards.
type fileDetail struct {
	ID           string      `json:"id"`
	OriginalName string      `json:"originalName"`
	UploadedAt   time.Time   `json:"uploadedAt"`
	Columns      []string    `json:"columns"`
	RowCount     int         `json:"rowCount"`
	SampleData   []sheet.Row `json:"sampleData"`
	FullData     []sheet.Row `json:"fullData"`
}

func toFileDetail(rec *models.FileRecord, full []sheet.Row) fileDetail {
	return fileDetail{
		ID:           rec.ID,
		OriginalName: rec.OriginalName,
		UploadedAt:   rec.UploadedAt,
		Columns:      rec.ColumnNames(),
		RowCount:     rec.RowCount,
		SampleData:   rec.SampleRows(),
		FullData:     full,
	}
}

// uploadFileHandler parses an uploaded workbook and stores its metadata and sample.
func (s *server) uploadFileHandler(c *gin.Context) {
	// allow some room for the multipart envelope around the file itself
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ingest.MaxUploadSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			respondError(c, ingest.ErrFileTooLarge)
			return
		}
		respondError(c, ingest.ErrMissingFile)
		return
	}
	if fh.Size > ingest.MaxUploadSize {
		respondError(c, ingest.ErrFileTooLarge)
		return
	}
	mimeType := fh.Header.Get("Content-Type")
	if !ingest.Accepts(fh.Filename, mimeType) {
		respondError(c, ingest.ErrNotExcel)
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, err)
		return
	}
	res, err := s.files.Upload(c.Request.Context(), currentIdentity(c), ingest.UploadInput{
		Filename: fh.Filename,
		MimeType: mimeType,
		Size:     fh.Size,
		Data:     data,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toFileDetail(res.Record, res.FullData))
}

func (s *server) listFilesHandler(c *gin.Context) {
	recs, err := s.files.List(c.Request.Context(), currentIdentity(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]fileSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, fileSummary{
			ID:           r.ID,
			Owner:        r.OwnerID,
			OriginalName: r.OriginalName,
			MimeType:     r.MimeType,
			Size:         r.Size,
			UploadedAt:   r.UploadedAt,
			Columns:      r.ColumnNames(),
			RowCount:     r.RowCount,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getFileHandler(c *gin.Context) {
	rec, err := s.files.Get(c.Request.Context(), c.Param("fileId"), currentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toFileDetail(rec, rec.SampleRows()))
}

func (s *server) deleteFileHandler(c *gin.Context) {
	id := c.Param("fileId")
	if err := s.files.Delete(c.Request.Context(), id, currentIdentity(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted successfully", "id": id})
}

func (s *server) createAnalysisHandler(c *gin.Context) {
	var req struct {
		FileID    string         `json:"fileId"`
		XAxis     string         `json:"xAxis"`
		YAxis     string         `json:"yAxis"`
		ChartType string         `json:"chartType"`
		Options   map[string]any `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := s.analyses.Create(c.Request.Context(), analysis.CreateInput{
		FileID:    req.FileID,
		Creator:   currentIdentity(c),
		XAxis:     req.XAxis,
		YAxis:     req.YAxis,
		ChartType: req.ChartType,
		Options:   req.Options,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *server) listAnalysesHandler(c *gin.Context) {
	list, err := s.analyses.ListByFile(c.Request.Context(), c.Param("fileId"), currentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *server) insightsHandler(c *gin.Context) {
	rec, err := s.files.Get(c.Request.Context(), c.Param("fileId"), currentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.insights.Generate(c.Request.Context(), insights.Summarize(rec)))
}

func (s *server) adminUsersHandler(c *gin.Context) {
	users, err := s.stats.Users(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]userView, 0, len(users))
	for i := range users {
		out = append(out, toUserView(&users[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) adminUsageHandler(c *gin.Context) {
	u, err := s.stats.Usage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
