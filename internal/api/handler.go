package api

import (
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/finsight/statement-ledger/internal/confidence"
	"github.com/finsight/statement-ledger/internal/dictionary"
	"github.com/finsight/statement-ledger/internal/extractor"
	"github.com/finsight/statement-ledger/internal/insights"
	"github.com/finsight/statement-ledger/internal/logger"
	"github.com/finsight/statement-ledger/internal/merge"
	"github.com/finsight/statement-ledger/internal/models"
	"github.com/finsight/statement-ledger/internal/normalize"
	"github.com/finsight/statement-ledger/internal/pipeline"
)

const Version = "1.0.0"

// pageBreakMarker separates pages in pre-extracted text uploads.
const pageBreakMarker = "\n---PAGE_BREAK---\n"

// ErrorResponse is the JSON body for any failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Server holds the HTTP handlers and their shared state.
type Server struct {
	pipe *pipeline.Pipeline
	dict *dictionary.Dictionary
	cfg  pipeline.Config
	log  zerolog.Logger
}

func NewServer(dict *dictionary.Dictionary, cfg pipeline.Config, log zerolog.Logger) *Server {
	return &Server{
		pipe: pipeline.New(dict, cfg, log),
		dict: dict,
		cfg:  cfg,
		log:  log,
	}
}

// App builds the fiber application with all routes registered.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 32 << 20, // statements upload as multipart PDFs
	})
	app.Use(recover.New())
	app.Use(cors.New())

	// Each request carries a scoped logger in its context so handlers
	// log with the method and path attached.
	app.Use(func(c *fiber.Ctx) error {
		reqLog := s.log.With().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Logger()
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))
		return c.Next()
	})

	app.Get("/api/health", s.HandleHealth)
	app.Post("/api/extract", s.HandleExtract)
	app.Post("/api/merge", s.HandleMerge)
	app.Post("/api/insights", s.HandleInsights)
	app.Post("/api/learn-merchant", s.HandleLearnMerchant)
	app.Post("/api/confidence", s.HandleConfidence)
	app.Get("/api/dictionary/stats", s.HandleDictionaryStats)
	app.Post("/api/dictionary/unmatched", s.HandleDictionaryUnmatched)
	return app
}

func (s *Server) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": Version,
	})
}

// HandleExtract accepts a statement PDF (multipart field "file") or
// pre-extracted text (form field "extractedText", pages separated by a
// ---PAGE_BREAK--- marker) and returns the finalized ledger.
func (s *Server) HandleExtract(c *fiber.Ctx) error {
	doc := &models.StatementDocument{Year: c.QueryInt("year")}

	if extracted := c.FormValue("extractedText"); extracted != "" {
		for _, page := range strings.Split(extracted, pageBreakMarker) {
			page = strings.TrimSpace(page)
			if page != "" {
				doc.Pages = append(doc.Pages, page)
			}
		}
		doc.SourceFile = c.FormValue("filename")
	} else {
		header, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "No file uploaded. Use form field 'file' or 'extractedText'.")
		}
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
			return badRequest(c, "Only PDF files are supported.")
		}

		tmp, err := os.CreateTemp("", "statement-*.pdf")
		if err != nil {
			return serverError(c, "Failed to create temp file.")
		}
		defer os.Remove(tmp.Name())
		tmp.Close()

		if err := c.SaveFile(header, tmp.Name()); err != nil {
			return serverError(c, "Failed to save uploaded file.")
		}

		extracted, err := extractor.ExtractDocument(tmp.Name())
		if err != nil {
			return unprocessable(c, fmt.Sprintf("PDF extraction failed: %v", err))
		}
		doc.Pages = extracted.Pages
		doc.Items = extracted.Items
		doc.SourceFile = header.Filename
	}

	if len(doc.Pages) == 0 && len(doc.Items) == 0 {
		return badRequest(c, "No statement content provided.")
	}

	ledger, err := s.pipe.Process(doc)
	if err != nil {
		return unprocessable(c, err.Error())
	}
	if ledger.Transactions == nil {
		ledger.Transactions = []models.ScoredTransaction{}
	}
	log := logger.FromContext(c.UserContext())
	log.Info().
		Str("source", ledger.SourceFile).
		Int("transactions", len(ledger.Transactions)).
		Msg("statement extracted")
	return c.JSON(ledger)
}

// MergeRequest is the JSON body for /api/merge.
type MergeRequest struct {
	Sources []struct {
		Label        string                     `json:"label"`
		Year         int                        `json:"year"`
		Transactions []models.ScoredTransaction `json:"transactions"`
	} `json:"sources"`
}

func (s *Server) HandleMerge(c *fiber.Ctx) error {
	var req MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
	}
	if len(req.Sources) == 0 {
		return badRequest(c, "At least one source is required.")
	}

	sources := make([]merge.Source, len(req.Sources))
	for i, src := range req.Sources {
		sources[i] = merge.Source{Label: src.Label, Year: src.Year, Transactions: src.Transactions}
	}
	return c.JSON(merge.Merge(sources, s.log))
}

// InsightsRequest is the JSON body for /api/insights.
type InsightsRequest struct {
	Year         int                        `json:"year"`
	Transactions []models.ScoredTransaction `json:"transactions"`
}

func (s *Server) HandleInsights(c *fiber.Ctx) error {
	var req InsightsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
	}
	if len(req.Transactions) == 0 {
		return badRequest(c, "No transactions provided.")
	}
	return c.JSON(insights.Summarize(req.Transactions, req.Year))
}

// LearnRequest is the JSON body for /api/learn-merchant.
type LearnRequest struct {
	NormalizedKey     string `json:"normalized_merchant"`
	CanonicalName     string `json:"canonical_name"`
	Category          string `json:"category"`
	SampleType        string `json:"sample_type"`
	SampleDescription string `json:"sample_description"`
}

// LearnResponse carries the learn outcome plus, for rejected requests,
// existing entries similar to the submitted key so the client can offer
// them as alternatives.
type LearnResponse struct {
	dictionary.LearnResult
	Suggestions []LearnSuggestion `json:"suggestions,omitempty"`
}

type LearnSuggestion struct {
	Key           string  `json:"normalized_merchant"`
	CanonicalName string  `json:"canonical_name"`
	Score         float64 `json:"score"`
}

func (s *Server) HandleLearnMerchant(c *fiber.Ctx) error {
	var req LearnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
	}
	if req.NormalizedKey == "" || req.CanonicalName == "" {
		return badRequest(c, "normalized_merchant and canonical_name are required.")
	}

	result, err := s.dict.LearnFromUserEdit(req.NormalizedKey, req.CanonicalName, req.Category, req.SampleType, req.SampleDescription)
	if err != nil {
		return serverError(c, err.Error())
	}

	resp := LearnResponse{LearnResult: result}
	if !result.Accepted {
		for _, m := range s.dict.FuzzyLookup(req.NormalizedKey, 0) {
			resp.Suggestions = append(resp.Suggestions, LearnSuggestion{
				Key:           m.Key,
				CanonicalName: m.Entry.CanonicalName,
				Score:         m.Score,
			})
		}
	}
	return c.JSON(resp)
}

// ConfidenceRequest is the JSON body for /api/confidence.
type ConfidenceRequest struct {
	Description string `json:"description"`
	Type        string `json:"type"`
}

// ConfidenceResponse explains how a description would be scored.
type ConfidenceResponse struct {
	NormalizedKey   string `json:"normalized_merchant"`
	DisplayName     string `json:"merchant_display"`
	Kind            string `json:"kind,omitempty"`
	PatternStrength int    `json:"pattern_strength"`
	Matched         bool   `json:"matched"`
	MatchType       string `json:"match_type,omitempty"`
	SuggestedMatch  string `json:"suggested_match,omitempty"`
	CanonicalName   string `json:"canonical_name,omitempty"`
	Category        string `json:"category,omitempty"`
	ConfidenceScore int    `json:"confidence_score"`
	ConfidenceTier  string `json:"confidence_level"`
	NeedsReview     bool   `json:"needs_review"`
}

func (s *Server) HandleConfidence(c *fiber.Ctx) error {
	var req ConfidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
	}
	if req.Description == "" {
		return badRequest(c, "description is required.")
	}

	txnType := req.Type
	if txnType == "" {
		txnType = "debit"
	}
	cand := models.TransactionCandidate{Description: req.Description, Type: txnType}
	norm := normalize.Normalize(cand.Description)
	scored := confidence.Score(cand, norm, s.dict, confidence.Config{ReviewThreshold: s.cfg.ReviewThreshold})

	return c.JSON(ConfidenceResponse{
		NormalizedKey:   scored.NormalizedKey,
		DisplayName:     scored.DisplayName,
		Kind:            scored.Kind,
		PatternStrength: confidence.PatternStrength(req.Description, norm.Key),
		Matched:         scored.Matched,
		MatchType:       scored.MatchType,
		SuggestedMatch:  scored.SuggestedMatch,
		CanonicalName:   scored.CanonicalName,
		Category:        scored.Category,
		ConfidenceScore: scored.ConfidenceScore,
		ConfidenceTier:  scored.ConfidenceTier,
		NeedsReview:     scored.NeedsReview,
	})
}

func (s *Server) HandleDictionaryStats(c *fiber.Ctx) error {
	return c.JSON(s.dict.Stats())
}

// UnmatchedRequest is the JSON body for /api/dictionary/unmatched.
type UnmatchedRequest struct {
	Keys []string `json:"keys"`
}

// HandleDictionaryUnmatched reports which of the submitted normalized
// keys have no live dictionary entry, so clients can prompt for learning.
func (s *Server) HandleDictionaryUnmatched(c *fiber.Ctx) error {
	var req UnmatchedRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, fmt.Sprintf("Invalid request body: %v", err))
	}
	if len(req.Keys) == 0 {
		return badRequest(c, "At least one key is required.")
	}

	unmatched := s.dict.Unmatched(req.Keys)
	if unmatched == nil {
		unmatched = []string{}
	}
	return c.JSON(fiber.Map{"unmatched": unmatched})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func unprocessable(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: msg})
}

func serverError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: msg})
}
