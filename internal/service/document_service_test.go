package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/repository"
)

type stubDetailDocRepo struct {
	repository.DocumentRepository
	doc     *model.Document
	deleted []string
}

func (r *stubDetailDocRepo) FindByID(id string) (*model.Document, error) {
	if r.doc == nil || r.doc.ID != id {
		return nil, errors.New("record not found")
	}
	return r.doc, nil
}

func (r *stubDetailDocRepo) Delete(id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

type stubDetailChunkRepo struct {
	repository.ChunkRepository
	count    int64
	countErr error
	deleted  []string
}

func (r *stubDetailChunkRepo) CountByDocumentID(documentID string) (int64, error) {
	return r.count, r.countErr
}

func (r *stubDetailChunkRepo) DeleteByDocumentID(documentID string) error {
	r.deleted = append(r.deleted, documentID)
	return nil
}

type stubDetailFinancialRepo struct {
	repository.FinancialRepository
	deleted []string
}

func (r *stubDetailFinancialRepo) DeleteBySourceDocument(sourceDocumentID string) error {
	r.deleted = append(r.deleted, sourceDocumentID)
	return nil
}

type stubDetailIndexer struct {
	deleted []string
}

func (i *stubDetailIndexer) IndexChunks(_ context.Context, _ []model.ChunkDocument) error {
	return nil
}

func (i *stubDetailIndexer) DeleteByDocumentID(_ context.Context, documentID string) error {
	i.deleted = append(i.deleted, documentID)
	return nil
}

type stubObjectAdmin struct {
	url        string
	presignErr error
	presigned  []string
	removed    []string
}

func (s *stubObjectAdmin) Remove(_ context.Context, objectKey string) error {
	s.removed = append(s.removed, objectKey)
	return nil
}

func (s *stubObjectAdmin) PresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	s.presigned = append(s.presigned, objectKey)
	return s.url, s.presignErr
}

func TestGetDocumentDetail(t *testing.T) {
	docRepo := &stubDetailDocRepo{doc: &model.Document{
		ID:        "doc-1",
		FileName:  "令和5年_収支報告書.pdf",
		ObjectKey: "documents/abc-令和5年_収支報告書.pdf",
		Status:    model.StatusCompleted,
	}}
	chunkRepo := &stubDetailChunkRepo{count: 12}
	store := &stubObjectAdmin{url: "https://minio.example.com/documents/abc?sig=xyz"}
	svc := NewDocumentService(docRepo, chunkRepo, &stubDetailFinancialRepo{}, &stubDetailIndexer{}, store)

	detail, err := svc.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, detail.Document)
	assert.Equal(t, "doc-1", detail.Document.ID)
	assert.Equal(t, int64(12), detail.ChunkCount)
	assert.Equal(t, store.url, detail.DownloadURL)
	require.Len(t, store.presigned, 1)
	assert.Equal(t, docRepo.doc.ObjectKey, store.presigned[0])
}

func TestGetDocumentDetailPresignFailureTolerated(t *testing.T) {
	docRepo := &stubDetailDocRepo{doc: &model.Document{ID: "doc-1", ObjectKey: "documents/abc.pdf"}}
	store := &stubObjectAdmin{presignErr: errors.New("连接超时")}
	svc := NewDocumentService(docRepo, &stubDetailChunkRepo{count: 3}, &stubDetailFinancialRepo{}, &stubDetailIndexer{}, store)

	detail, err := svc.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.ChunkCount)
	assert.Empty(t, detail.DownloadURL)
}

func TestGetDocumentDetailNotFound(t *testing.T) {
	svc := NewDocumentService(&stubDetailDocRepo{}, &stubDetailChunkRepo{}, &stubDetailFinancialRepo{}, &stubDetailIndexer{}, &stubObjectAdmin{})

	_, err := svc.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestDeleteCascade(t *testing.T) {
	docRepo := &stubDetailDocRepo{doc: &model.Document{ID: "doc-1", ObjectKey: "documents/abc.pdf"}}
	chunkRepo := &stubDetailChunkRepo{}
	financialRepo := &stubDetailFinancialRepo{}
	indexer := &stubDetailIndexer{}
	store := &stubObjectAdmin{}
	svc := NewDocumentService(docRepo, chunkRepo, financialRepo, indexer, store)

	require.NoError(t, svc.Delete(context.Background(), "doc-1"))
	assert.Equal(t, []string{"doc-1"}, financialRepo.deleted)
	assert.Equal(t, []string{"doc-1"}, chunkRepo.deleted)
	assert.Equal(t, []string{"doc-1"}, indexer.deleted)
	assert.Equal(t, []string{"documents/abc.pdf"}, store.removed)
	assert.Equal(t, []string{"doc-1"}, docRepo.deleted)
}
