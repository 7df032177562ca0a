package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/domain/story"
	"github.com/dotcommander/imaginator/internal/export"
)

type createStoryRequest struct {
	Title string `json:"title" binding:"max=200"`
}

type beginRequest struct {
	Concept string `json:"concept" binding:"required,max=2000"`
}

type chooseRequest struct {
	OptionID string `json:"option_id" binding:"required"`
}

type sceneRequest struct {
	Context string `json:"context" binding:"max=2000"`
}

type exportRequest struct {
	Format  string   `json:"format"`
	Formats []string `json:"formats" binding:"max=5"`
	Save    bool     `json:"save"`
}

// savedRendering is a rendering plus where it was written, when saved
type savedRendering struct {
	export.Rendering
	Path string `json:"path,omitempty"`
}

func owner(c *gin.Context) string {
	return c.GetString(ownerKey)
}

// bind decodes the JSON body; an empty body is allowed when every field is optional
func (h *Handler) bind(c *gin.Context, target any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		fail(c, http.StatusBadRequest, ErrorValidation, err.Error())
		return false
	}
	return true
}

// session opens the story named in the path for the calling owner
func (h *Handler) session(c *gin.Context) (*core.Session, bool) {
	s, err := h.engine.Open(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		h.failErr(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) createStory(c *gin.Context) {
	var req createStoryRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.engine.NewStory(c.Request.Context(), owner(c), req.Title)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, s.Snapshot())
}

func (h *Handler) listStories(c *gin.Context) {
	docs, err := h.engine.List(c.Request.Context(), owner(c))
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, docs)
}

func (h *Handler) getStory(c *gin.Context) {
	s, found := h.session(c)
	if !found {
		return
	}
	ok(c, http.StatusOK, s.Snapshot())
}

func (h *Handler) deleteStory(c *gin.Context) {
	id := c.Param("id")
	if err := h.engine.Delete(c.Request.Context(), owner(c), id); err != nil {
		h.failErr(c, err)
		return
	}
	if h.exports != nil {
		if err := h.exports.Remove(context.WithoutCancel(c.Request.Context()), id); err != nil {
			h.logger.Warn("exports not removed",
				"story_id", id,
				"error", err)
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) begin(c *gin.Context) {
	var req beginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorValidation, err.Error())
		return
	}
	s, found := h.session(c)
	if !found {
		return
	}
	snap, err := h.engine.Begin(c.Request.Context(), s.ID(), req.Concept)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

func (h *Handler) choose(c *gin.Context) {
	var req chooseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorValidation, err.Error())
		return
	}
	s, found := h.session(c)
	if !found {
		return
	}
	snap, err := h.engine.Choose(c.Request.Context(), s.ID(), req.OptionID)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

func (h *Handler) nextScene(c *gin.Context) {
	var req sceneRequest
	if !h.bind(c, &req) {
		return
	}
	s, found := h.session(c)
	if !found {
		return
	}
	snap, err := h.engine.NextScene(c.Request.Context(), s.ID(), req.Context)
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

func (h *Handler) analyze(c *gin.Context) {
	s, found := h.session(c)
	if !found {
		return
	}
	analysis, err := h.engine.Analyze(c.Request.Context(), s.ID())
	if err != nil {
		h.failErr(c, err)
		return
	}
	ok(c, http.StatusOK, analysis)
}

// exportStory renders one format ({format}) or several ({formats}). With save set,
// each rendering is also written to the export directory.
func (h *Handler) exportStory(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrorValidation, err.Error())
		return
	}

	names := req.Formats
	if req.Format != "" {
		names = append([]string{req.Format}, names...)
	}
	if len(names) == 0 {
		fail(c, http.StatusBadRequest, ErrorValidation, "format or formats is required")
		return
	}
	formats := make([]story.Format, 0, len(names))
	for _, name := range names {
		f, err := export.ParseFormat(name)
		if err != nil {
			h.failErr(c, err)
			return
		}
		formats = append(formats, f)
	}
	if req.Save && h.exports == nil {
		fail(c, http.StatusBadRequest, ErrorValidation, "saving exports is not enabled")
		return
	}

	s, found := h.session(c)
	if !found {
		return
	}
	ctx := c.Request.Context()

	var renderings []export.Rendering
	var err error
	if len(formats) == 1 {
		var r export.Rendering
		r, err = h.engine.Export(ctx, s.ID(), formats[0])
		renderings = []export.Rendering{r}
	} else {
		renderings, err = h.engine.ExportAll(ctx, s.ID(), formats)
	}
	if err != nil {
		h.failErr(c, err)
		return
	}

	out := make([]savedRendering, len(renderings))
	doc := s.Snapshot().Story
	for i, r := range renderings {
		out[i] = savedRendering{Rendering: r}
		if !req.Save {
			continue
		}
		path, err := h.exports.Write(ctx, doc, r)
		if err != nil {
			h.failErr(c, err)
			return
		}
		out[i].Path = path
	}

	if len(out) == 1 && req.Format != "" && len(req.Formats) == 0 {
		ok(c, http.StatusOK, out[0])
		return
	}
	ok(c, http.StatusOK, out)
}

func (h *Handler) listExports(c *gin.Context) {
	s, found := h.session(c)
	if !found {
		return
	}
	paths := []string{}
	if h.exports != nil {
		var err error
		if paths, err = h.exports.List(c.Request.Context(), s.ID()); err != nil {
			h.failErr(c, err)
			return
		}
	}
	ok(c, http.StatusOK, paths)
}

func (h *Handler) history(c *gin.Context) {
	records, err := h.engine.History(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		h.failErr(c, err)
		return
	}
	if records == nil {
		records = []story.DecisionRecord{}
	}
	ok(c, http.StatusOK, records)
}
