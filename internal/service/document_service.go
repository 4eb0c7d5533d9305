// FILE: internal/service/document_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/entity"
	"ai-docchat-be/internal/repository/specification"
	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/pkg/events"
	pktNats "ai-docchat-be/pkg/nats"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IDocumentService interface {
	Create(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.DocumentDetailResponse, error)
	List(ctx context.Context, keyword string, limit, offset int) ([]*dto.DocumentResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdateDocumentRequest) (*dto.DocumentResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
	}
}

func (s *documentService) Create(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document := entity.Document{
		Id:        uuid.New(),
		Title:     req.Title,
		Content:   req.Content,
		Source:    req.Source,
		CreatedAt: time.Now(),
	}

	if err := uow.DocumentRepository().Create(ctx, &document); err != nil {
		return nil, err
	}

	if err := s.publishEmbedMessage(ctx, document.Id); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, "DOCUMENT_CREATED", &document)

	return toDocumentResponse(&document, 0), nil
}

func (s *documentService) Show(ctx context.Context, id uuid.UUID) (*dto.DocumentDetailResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, gorm.ErrRecordNotFound
	}

	return &dto.DocumentDetailResponse{
		Id:        document.Id,
		Title:     document.Title,
		Content:   document.Content,
		Source:    document.Source,
		CreatedAt: document.CreatedAt,
		UpdatedAt: document.UpdatedAt,
	}, nil
}

func (s *documentService) List(ctx context.Context, keyword string, limit, offset int) ([]*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	specs := make([]specification.Specification, 0, 2)
	if keyword != "" {
		specs = append(specs, specification.TitleContains{Keyword: keyword})
	}
	specs = append(specs, specification.Pagination{Limit: limit, Offset: offset})

	documents, err := uow.DocumentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.DocumentResponse, len(documents))
	for i, document := range documents {
		count, err := uow.DocumentChunkRepository().Count(ctx, specification.ByDocumentID{DocumentID: document.Id})
		if err != nil {
			return nil, err
		}
		res[i] = toDocumentResponse(document, int(count))
	}
	return res, nil
}

func (s *documentService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateDocumentRequest) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, gorm.ErrRecordNotFound
	}

	document.Title = req.Title
	document.Content = req.Content
	document.Source = req.Source

	if err := uow.DocumentRepository().Update(ctx, document); err != nil {
		return nil, err
	}

	// Content changed, chunks must be rebuilt
	if err := s.publishEmbedMessage(ctx, document.Id); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, "DOCUMENT_UPDATED", document)

	return toDocumentResponse(document, 0), nil
}

func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if document == nil {
		return gorm.ErrRecordNotFound
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.DocumentChunkRepository().DeleteByDocumentId(ctx, id); err != nil {
		return err
	}
	if err := uow.DocumentRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.publishEvent(ctx, "DOCUMENT_DELETED", document)
	return nil
}

func (s *documentService) publishEmbedMessage(ctx context.Context, documentId uuid.UUID) error {
	payload := dto.PublishEmbedDocumentMessage{DocumentId: documentId}
	msgJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, msgJson)
}

func (s *documentService) publishEvent(ctx context.Context, eventType string, document *entity.Document) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"document_id": document.Id,
			"title":       document.Title,
		},
		OccurredAt: time.Now(),
	}
	// Auxiliary, never fail the request
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		fmt.Printf("[WARN] Failed to publish %s event: %v\n", eventType, err)
	}
}

func toDocumentResponse(document *entity.Document, chunkCount int) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:         document.Id,
		Title:      document.Title,
		Source:     document.Source,
		ChunkCount: chunkCount,
		CreatedAt:  document.CreatedAt,
		UpdatedAt:  document.UpdatedAt,
	}
}
