// Package service 实现业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"seiji-fund-go/internal/model"
	"seiji-fund-go/internal/repository"
	"seiji-fund-go/pkg/log"
	"seiji-fund-go/pkg/tasks"
)

var (
	// ErrInvalidFileType 文件类型不是 PDF。
	ErrInvalidFileType = errors.New("仅支持 PDF 文件")
	// ErrFileTooLarge 文件超过大小限制。
	ErrFileTooLarge = errors.New("文件超过大小限制")
)

// ObjectUploader 上传服务依赖的对象存储写入能力。
type ObjectUploader interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) error
}

// TaskPublisher 上传服务依赖的任务投递能力。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.DocumentTask) error
}

// UploadResult 上传接口的返回结构。
type UploadResult struct {
	Document    *model.Document `json:"document"`
	IsDuplicate bool            `json:"isDuplicate"`
	Message     string          `json:"message"`
}

// UploadService 文档上传服务接口。
type UploadService interface {
	Upload(ctx context.Context, fileName string, data []byte, contentType string) (*UploadResult, error)
}

type uploadService struct {
	docRepo     repository.DocumentRepository
	store       ObjectUploader
	publisher   TaskPublisher
	maxFileSize int64
}

// NewUploadService 创建上传服务。publisher 可为 nil（无消息队列时文档
// 停留在 pending 状态，由定时批处理捡起）。
func NewUploadService(docRepo repository.DocumentRepository, store ObjectUploader,
	publisher TaskPublisher, maxFileSize int64) UploadService {
	return &uploadService{
		docRepo:     docRepo,
		store:       store,
		publisher:   publisher,
		maxFileSize: maxFileSize,
	}
}

// Upload 校验文件、写入对象存储、落库并投递处理任务。
// 同名文件直接视为重复，返回既有记录不再入库；内容级别的查重
// 由处理管道基于哈希完成。
func (s *uploadService) Upload(ctx context.Context, fileName string, data []byte, contentType string) (*UploadResult, error) {
	if err := s.validate(fileName, data, contentType); err != nil {
		return nil, err
	}

	existing, err := s.docRepo.FindByFileName(fileName)
	if err != nil {
		return nil, fmt.Errorf("查询同名文档失败: %w", err)
	}
	if existing != nil {
		log.Infof("[Upload] 同名文档已存在: %s (%s)", fileName, existing.ID)
		return &UploadResult{
			Document:    existing,
			IsDuplicate: true,
			Message:     "同名文档已存在，未重复入库",
		}, nil
	}

	docID := uuid.NewString()
	objectKey := fmt.Sprintf("documents/%s-%s", docID, fileName)
	if err := s.store.Upload(ctx, objectKey, data, contentType); err != nil {
		return nil, fmt.Errorf("上传文件失败: %w", err)
	}

	party, region := inferPartyAndRegion(fileName)
	doc := &model.Document{
		ID:        docID,
		FileName:  fileName,
		ObjectKey: objectKey,
		FileSize:  int64(len(data)),
		Status:    model.StatusPending,
		PartyName: party,
		Region:    region,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("保存文档记录失败: %w", err)
	}

	// 投递失败不影响上传结果，定时批处理会兜底捡起 pending 文档
	if s.publisher != nil {
		task := tasks.DocumentTask{DocumentID: docID, ObjectKey: objectKey, FileName: fileName}
		if err := s.publisher.Publish(ctx, task); err != nil {
			log.Errorf("[Upload] 投递处理任务失败: %s: %v", docID, err)
		}
	}

	log.Infof("[Upload] 文档入库: %s (%s, %d 字节)", fileName, docID, len(data))
	return &UploadResult{Document: doc, Message: "上传成功，已加入处理队列"}, nil
}

func (s *uploadService) validate(fileName string, data []byte, contentType string) error {
	if !strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return ErrInvalidFileType
	}
	if contentType != "" && contentType != "application/pdf" {
		return ErrInvalidFileType
	}
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return ErrFileTooLarge
	}
	return nil
}

// partyKeywords 按文件名中的简称推断政党全称。
var partyKeywords = []struct {
	keyword string
	party   string
}{
	{"自由民主党", "自由民主党"},
	{"立憲民主党", "立憲民主党"},
	{"自民", "自由民主党"},
	{"立憲", "立憲民主党"},
	{"立民", "立憲民主党"},
	{"公明", "公明党"},
	{"維新", "日本維新の会"},
	{"共産", "日本共産党"},
	{"国民民主", "国民民主党"},
	{"社民", "社会民主党"},
	{"れいわ", "れいわ新選組"},
}

var prefectures = []string{
	"北海道", "青森県", "岩手県", "宮城県", "秋田県", "山形県", "福島県",
	"茨城県", "栃木県", "群馬県", "埼玉県", "千葉県", "東京都", "神奈川県",
	"新潟県", "富山県", "石川県", "福井県", "山梨県", "長野県", "岐阜県",
	"静岡県", "愛知県", "三重県", "滋賀県", "京都府", "大阪府", "兵庫県",
	"奈良県", "和歌山県", "鳥取県", "島根県", "岡山県", "広島県", "山口県",
	"徳島県", "香川県", "愛媛県", "高知県", "福岡県", "佐賀県", "長崎県",
	"熊本県", "大分県", "宮崎県", "鹿児島県", "沖縄県",
}

// inferPartyAndRegion 从文件名推断政党与地域，推断不出时留空。
func inferPartyAndRegion(fileName string) (string, string) {
	var party, region string
	for _, pk := range partyKeywords {
		if strings.Contains(fileName, pk.keyword) {
			party = pk.party
			break
		}
	}
	for _, pref := range prefectures {
		if strings.Contains(fileName, pref) {
			region = pref
			break
		}
	}
	return party, region
}
