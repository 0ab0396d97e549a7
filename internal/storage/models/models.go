package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Resume 简历主表，解析文本与元数据都保存在这里
type Resume struct {
	ResumeID            string         `gorm:"type:char(36);primaryKey"`
	Filename            string         `gorm:"type:varchar(255)"` // 对象存储中的文件名
	OriginalName        string         `gorm:"type:varchar(255);index:idx_resumes_original_name"`
	FileSize            int64          `gorm:"type:bigint"`
	MimeType            string         `gorm:"type:varchar(100)"`
	ParsedText          string         `gorm:"type:longtext;not null"`
	TextMD5             string         `gorm:"type:char(32);index:idx_resumes_text_md5"`
	CandidateName       string         `gorm:"type:varchar(255);index:idx_resumes_candidate_name"`
	MetadataJSON        datatypes.JSON `gorm:"type:json"`
	EmbeddingDimensions int            `gorm:"type:int"`
	OriginalObjectKey   string         `gorm:"type:varchar(1024)"`
	ParsedTextObjectKey string         `gorm:"type:varchar(1024)"`
	CreatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_resumes_created_at"`
	UpdatedAt           time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Chunks []ResumeChunk `gorm:"foreignKey:ResumeID;references:ResumeID"`
}

func (Resume) TableName() string {
	return "resumes"
}

// ResumeChunk 简历分块及其向量
type ResumeChunk struct {
	ChunkDBID   uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeID    string         `gorm:"type:char(36);not null;index:idx_rc_resume_id;uniqueIndex:idx_rc_resume_chunk,priority:1"`
	ChunkIndex  int            `gorm:"not null;uniqueIndex:idx_rc_resume_chunk,priority:2"`
	ChunkText   string         `gorm:"type:text;not null"`
	StartOffset int            `gorm:"not null"`
	EndOffset   int            `gorm:"not null"`
	VectorJSON  datatypes.JSON `gorm:"type:json;not null"`
	PointID     string         `gorm:"type:char(36)"` // Qdrant 点 ID
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ResumeChunk) TableName() string {
	return "resume_chunks"
}

// Job 岗位信息表
type Job struct {
	JobID          string         `gorm:"type:char(36);primaryKey"`
	Title          string         `gorm:"type:varchar(255);not null"`
	Company        string         `gorm:"type:varchar(255);not null;index:idx_jobs_company"`
	Description    string         `gorm:"type:text;not null"`
	Requirements   string         `gorm:"type:text;not null"`
	Location       string         `gorm:"type:varchar(255);index:idx_jobs_location"`
	SalaryJSON     datatypes.JSON `gorm:"type:json"`
	EmploymentType string         `gorm:"type:varchar(50);default:'full-time'"`
	Experience     string         `gorm:"type:varchar(255)"`
	SkillsJSON     datatypes.JSON `gorm:"type:json"`
	BenefitsJSON   datatypes.JSON `gorm:"type:json"`
	IsActive       bool           `gorm:"default:true;index:idx_jobs_active_created,priority:1"`
	CreatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_jobs_active_created,priority:2"`
	UpdatedAt      time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	Chunks []JobChunk `gorm:"foreignKey:JobID;references:JobID"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobChunk 岗位全文分块及其向量
type JobChunk struct {
	ChunkDBID   uint64         `gorm:"primaryKey;autoIncrement"`
	JobID       string         `gorm:"type:char(36);not null;index:idx_jc_job_id;uniqueIndex:idx_jc_job_chunk,priority:1"`
	ChunkIndex  int            `gorm:"not null;uniqueIndex:idx_jc_job_chunk,priority:2"`
	ChunkText   string         `gorm:"type:text;not null"`
	StartOffset int            `gorm:"not null"`
	EndOffset   int            `gorm:"not null"`
	VectorJSON  datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (JobChunk) TableName() string {
	return "job_chunks"
}

// JobMatch 岗位-简历匹配结果，每次匹配整体替换
type JobMatch struct {
	MatchID                 uint64         `gorm:"primaryKey;autoIncrement"`
	JobID                   string         `gorm:"type:char(36);not null;index:idx_jm_job_score,priority:1;uniqueIndex:idx_jm_job_resume,priority:1"`
	ResumeID                string         `gorm:"type:char(36);not null;index:idx_jm_resume_id;uniqueIndex:idx_jm_job_resume,priority:2"`
	Score                   int            `gorm:"not null;index:idx_jm_job_score,priority:2"`
	EvidenceJSON            datatypes.JSON `gorm:"type:json"`
	MissingRequirementsJSON datatypes.JSON `gorm:"type:json"`
	StrengthsJSON           datatypes.JSON `gorm:"type:json"`
	WeaknessesJSON          datatypes.JSON `gorm:"type:json"`
	MatchDetailsJSON        datatypes.JSON `gorm:"type:json"`
	MatchedAt               time.Time      `gorm:"type:datetime(6);not null"`
	CreatedAt               time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (JobMatch) TableName() string {
	return "job_matches"
}

// ToJSON 将任意值序列化为 datatypes.JSON，nil 切片写成 []
func ToJSON(v interface{}) (datatypes.JSON, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(bytes) == "null" {
		return datatypes.JSON("[]"), nil
	}
	return bytes, nil
}

// FromJSON 反序列化 JSON 列，空列保持零值
func FromJSON(data datatypes.JSON, dest interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
