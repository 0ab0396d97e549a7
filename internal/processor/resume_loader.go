package processor

import (
	"context"
	"fmt"
	"log"

	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage"
)

// 每批加载的简历数量，控制全量扫描时的内存占用
var resumeLoadBatch = 200

// forEachResumeBatch 按 (created_at, resume_id) 键集分批加载全部简历及其分块向量。
// 无法解析的简历记录日志后跳过，但仍计入返回的简历总数。
func forEachResumeBatch(ctx context.Context, repo ResumeRepository, logger *log.Logger, fn func(docs []matching.Document) error) (int, error) {
	scanned := 0
	var after *storage.ResumeCursor
	for {
		if err := ctx.Err(); err != nil {
			return scanned, err
		}
		rows, err := repo.ScanResumesWithChunks(ctx, after, resumeLoadBatch)
		if err != nil {
			return scanned, fmt.Errorf("加载简历失败: %w", err)
		}
		docs := make([]matching.Document, 0, len(rows))
		for i := range rows {
			doc, err := rows[i].ToDocument()
			if err != nil {
				logger.Printf("跳过无法解析的简历 %s: %v", rows[i].ResumeID, err)
				continue
			}
			docs = append(docs, doc)
		}
		if len(docs) > 0 {
			if err := fn(docs); err != nil {
				return scanned, err
			}
		}
		scanned += len(rows)
		if len(rows) < resumeLoadBatch {
			return scanned, nil
		}
		last := rows[len(rows)-1]
		after = &storage.ResumeCursor{CreatedAt: last.CreatedAt, ResumeID: last.ResumeID}
	}
}

// loadResumePage 加载一页简历，供分页检索使用
func loadResumePage(ctx context.Context, repo ResumeRepository, logger *log.Logger, limit, offset int) ([]matching.Document, int64, error) {
	rows, total, err := repo.ListResumesWithChunks(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("加载简历失败: %w", err)
	}
	docs := make([]matching.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].ToDocument()
		if err != nil {
			logger.Printf("跳过无法解析的简历 %s: %v", rows[i].ResumeID, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, total, nil
}
