package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"math"
	"path"
	"strings"

	"github.com/12222526/Rag-Resume/internal/matching"
)

// ZipEntry 压缩包中的一份简历文件
type ZipEntry struct {
	Name string
	Data []byte
}

// ZipLimits 批量上传的解压上限，<= 0 表示不限制
type ZipLimits struct {
	MaxEntries    int
	MaxTotalBytes int64
}

// ExtractZipResumes 读取压缩包中的 PDF / TXT 文件。
// 目录、隐藏文件与 __MACOSX 元数据直接忽略，其余不支持的条目和空文件记入 skipped。
// 条目数或解压后的总大小超限时整体拒绝。
func ExtractZipResumes(data []byte, limits ZipLimits) (entries []ZipEntry, skipped []string, err error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, matching.NewValidationError("upload-zip", "Invalid ZIP file")
	}

	budget := limits.MaxTotalBytes
	if budget <= 0 {
		budget = math.MaxInt64 - 1
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		name := path.Base(f.Name)
		if strings.HasPrefix(name, ".") {
			continue
		}
		if DetectMimeType(name) == "" {
			skipped = append(skipped, f.Name)
			continue
		}
		if limits.MaxEntries > 0 && len(entries) >= limits.MaxEntries {
			return nil, nil, matching.NewValidationError("upload-zip",
				fmt.Sprintf("ZIP file contains more than %d resumes", limits.MaxEntries))
		}

		content, err := readZipEntry(f, budget)
		if err != nil {
			return nil, nil, err
		}
		budget -= int64(len(content))
		if len(content) == 0 {
			skipped = append(skipped, f.Name)
			continue
		}
		entries = append(entries, ZipEntry{Name: name, Data: content})
	}
	return entries, skipped, nil
}

// readZipEntry 按剩余额度读取，不信任头部声明的大小
func readZipEntry(f *zip.File, budget int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, matching.NewValidationError("upload-zip", fmt.Sprintf("Invalid ZIP entry %s", f.Name))
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, budget+1))
	if err != nil {
		return nil, matching.NewValidationError("upload-zip", fmt.Sprintf("Invalid ZIP entry %s", f.Name))
	}
	if int64(len(content)) > budget {
		return nil, matching.NewValidationError("upload-zip", "ZIP file content is too large")
	}
	return content, nil
}
