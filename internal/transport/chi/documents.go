package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/hybridex/internal/domain"
	dombatch "github.com/kailas-cloud/hybridex/internal/domain/batch"
	domdoc "github.com/kailas-cloud/hybridex/internal/domain/document"
	"github.com/kailas-cloud/hybridex/internal/domain/document/patch"
	lifecycleuc "github.com/kailas-cloud/hybridex/internal/usecase/lifecycle"
)

// CreateDocument handles POST /api/documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.lifecycle.Add(ctx, inputFromRequest(req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/documents/"+doc.ID())
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, documentToResponse(&doc))
}

// ListDocuments handles GET /api/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	var page, perPage *int
	if !bindQuery(w, r, "page", &page) || !bindQuery(w, r, "per_page", &perPage) {
		return
	}

	res, err := s.lifecycle.List(r.Context(), derefInt(page), derefInt(perPage))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]DocumentResponse, len(res.Documents))
	for i := range res.Documents {
		items[i] = documentToResponse(&res.Documents[i])
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{
		Documents:  items,
		Total:      res.Total,
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalPages: res.TotalPages,
	})
}

// GetDocument handles GET /api/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.lifecycle.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// UpdateDocument handles PUT /api/documents/{id}.
func (s *Server) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	p, err := patch.New(req.Title, req.Content, req.Metadata)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	doc, err := s.lifecycle.Update(ctx, chi.URLParam(r, "id"), p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.lifecycle.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchCreate handles POST /api/documents/batch.
func (s *Server) BatchCreate(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > lifecycleuc.MaxBatchSize {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("documents count must be between 1 and %d", lifecycleuc.MaxBatchSize))
		return
	}

	inputs := make([]lifecycleuc.Input, len(req.Documents))
	for i, d := range req.Documents {
		inputs[i] = inputFromRequest(d)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results := s.lifecycle.AddBatch(ctx, inputs)

	items := make([]BatchResultItem, len(results))
	for i, res := range results {
		items[i] = s.batchResultToResponse(res)
	}
	succeeded, failed := dombatch.Tally(results)

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, BatchResponse{
		Items:     items,
		Succeeded: succeeded,
		Failed:    failed,
	})
}

// DocumentKeywords handles GET /api/documents/{id}/keywords.
func (s *Server) DocumentKeywords(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if !bindQuery(w, r, "limit", &limit) {
		return
	}

	id := chi.URLParam(r, "id")
	terms, err := s.lifecycle.Keywords(r.Context(), id, derefInt(limit))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]KeywordItem, len(terms))
	for i, t := range terms {
		items[i] = KeywordItem{Term: t.Term, Weight: t.Weight}
	}
	writeJSON(w, http.StatusOK, KeywordsResponse{DocumentID: id, Keywords: items})
}

func inputFromRequest(req DocumentRequest) lifecycleuc.Input {
	return lifecycleuc.Input{
		ID:       req.ID,
		Title:    req.Title,
		Body:     req.Content,
		Metadata: req.Metadata,
	}
}

func documentToResponse(doc *domdoc.Document) DocumentResponse {
	return DocumentResponse{
		ID:        doc.ID(),
		Title:     doc.Title(),
		Content:   doc.Body(),
		Metadata:  doc.Metadata(),
		CreatedAt: doc.CreatedAt(),
		UpdatedAt: doc.UpdatedAt(),
	}
}

func (s *Server) batchResultToResponse(r dombatch.Result) BatchResultItem {
	item := BatchResultItem{
		ID:     r.DocID(),
		Status: string(r.Status()),
	}
	if r.Err() != nil {
		_, resp := s.classify(r.Err())
		item.Error = &resp
	}
	return item
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
