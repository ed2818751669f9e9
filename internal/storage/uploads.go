package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UploadStore 将原始上传文件按文档ID保存在本地目录。
// 文件名为 <documentID><扩展名>，内容哈希相同的重复保存是幂等覆盖。
type UploadStore struct {
	dir string
}

// NewUploadStore 创建上传文件存储，目录不存在时自动创建
func NewUploadStore(dir string) (*UploadStore, error) {
	if dir == "" {
		dir = "./data/raw_uploads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &UploadStore{dir: dir}, nil
}

// Save 保存原始文件内容
func (s *UploadStore) Save(documentID, filename string, data []byte) error {
	target := filepath.Join(s.dir, documentID+strings.ToLower(filepath.Ext(filename)))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入上传文件失败: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("保存上传文件失败: %w", err)
	}
	return nil
}

// Remove 删除文档的原始文件
func (s *UploadStore) Remove(documentID string) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, documentID+".*"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Path 返回文档原始文件的路径
func (s *UploadStore) Path(documentID string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(s.dir, documentID+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
