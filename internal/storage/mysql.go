package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/12222526/Rag-Resume/internal/config"
	"github.com/12222526/Rag-Resume/internal/matching"
	"github.com/12222526/Rag-Resume/internal/storage/models"
	"github.com/12222526/Rag-Resume/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var mysqlTracer = otel.Tracer("rag-resume/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin 是一个GORM插件，用于向OpenTelemetry中添加数据库操作的追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	dbSystem       string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	// 为各种操作类型注册回调
	cb := db.Callback()

	// 为所有CRUD操作注册Before和After回调
	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")); err != nil {
		return err
	}
	if err := cb.Row().After("gorm:row").Register("otel:after_row", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		// 如果是错误跳过且DisableErrSkip为true，则跳过追踪
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		// 从DB获取上下文
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		// 获取操作表名，如果为空则使用"unknown"
		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		// 创建一个新的span
		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		if sqlStatement := db.Statement.SQL.String(); sqlStatement != "" {
			opts = append(opts, trace.WithAttributes(
				attribute.String("db.statement", tracing.SafeSQL(sqlStatement)),
			))
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)

		// 将span保存在DB上下文中，以便在after回调中使用
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		// 从DB上下文中获取span
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))

		// 记录错误（如果有），但正确处理ErrRecordNotFound
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// ErrRecordNotFound 是业务逻辑正常情况的一部分，不应作为错误处理
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		dbSystem:       "mysql",
		disableErrSkip: true, // 默认禁用错误跳过，减少误报错误
	}
}

// WithDisableErrSkip 设置是否禁用错误跳过
func (p *GormTracingPlugin) WithDisableErrSkip(disable bool) *GormTracingPlugin {
	p.disableErrSkip = disable
	return p
}

// MySQL 提供关系数据库功能，同时是简历、岗位与匹配结果的仓储
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel logger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = logger.Silent
	case 2:
		logLevel = logger.Error
	case 3:
		logLevel = logger.Warn
	default:
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database).WithDisableErrSkip(true)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用静默日志执行 AutoMigrate
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := logger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	err := m.db.Session(&gorm.Session{Logger: silentLogger}).AutoMigrate(
		&models.Resume{},
		&models.ResumeChunk{},
		&models.Job{},
		&models.JobChunk{},
		&models.JobMatch{},
		&models.OutboxMessage{},
	)
	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func (m *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// startSpan 为仓储方法创建命名span
func (m *MySQL) startSpan(ctx context.Context, name, operation, table string) (context.Context, trace.Span) {
	return mysqlTracer.Start(ctx, "MySQL."+name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemMySQL,
			attribute.String("db.name", m.cfg.Database),
			attribute.String("db.operation", operation),
			attribute.String("db.sql.table", table),
		))
}

// notFound 将 gorm 未找到错误转换为领域错误
func notFound(err error, op, detail string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return matching.NewNotFoundError(op, detail)
	}
	return err
}

// likePattern 转义 LIKE 通配符并转小写
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}

func orderedChunks(db *gorm.DB) *gorm.DB {
	return db.Order("chunk_index ASC")
}

// ---------------- 简历 ----------------

// CreateResume 在一个事务中写入简历、分块与 outbox 事件
func (m *MySQL) CreateResume(ctx context.Context, resume *models.Resume, chunks []models.ResumeChunk, event *models.OutboxMessage) error {
	ctx, span := m.startSpan(ctx, "CreateResume", "INSERT", resume.TableName())
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resume.ResumeID), attribute.Int("resume.chunks", len(chunks)))

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		tracing.RecordError(span, tx.Error, tracing.ErrorTypeDB)
		return fmt.Errorf("开始事务失败: %w", tx.Error)
	}
	defer tx.Rollback()

	if err := tx.Omit("Chunks").Create(resume).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("保存简历失败: %w", err)
	}
	if len(chunks) > 0 {
		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("保存简历分块失败: %w", err)
		}
	}
	if event != nil {
		if err := tx.Create(event).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("写入outbox事件失败: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("提交事务失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// UpdateResumeChunkPointIDs 按 chunk_index 回写 Qdrant 点 ID
func (m *MySQL) UpdateResumeChunkPointIDs(ctx context.Context, resumeID string, pointIDs []string) error {
	if len(pointIDs) == 0 {
		return nil
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, pointID := range pointIDs {
			err := tx.Model(&models.ResumeChunk{}).
				Where("resume_id = ? AND chunk_index = ?", resumeID, idx).
				Update("point_id", pointID).Error
			if err != nil {
				return fmt.Errorf("更新分块 %d 的 point_id 失败: %w", idx, err)
			}
		}
		return nil
	})
}

// UpdateResumeObjectKeys 回写对象存储键
func (m *MySQL) UpdateResumeObjectKeys(ctx context.Context, resumeID, originalKey, parsedKey string) error {
	return m.db.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(map[string]interface{}{
			"original_object_key":    originalKey,
			"parsed_text_object_key": parsedKey,
		}).Error
}

// GetResume 获取单份简历，withChunks 为 true 时按顺序加载分块
func (m *MySQL) GetResume(ctx context.Context, resumeID string, withChunks bool) (*models.Resume, error) {
	q := m.db.WithContext(ctx)
	if withChunks {
		q = q.Preload("Chunks", orderedChunks)
	}
	var resume models.Resume
	if err := q.Where("resume_id = ?", resumeID).First(&resume).Error; err != nil {
		return nil, notFound(err, "GetResume", "Resume not found")
	}
	return &resume, nil
}

// CountChunks 统计简历分块数
func (m *MySQL) CountChunks(ctx context.Context, resumeID string) (int64, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(&models.ResumeChunk{}).Where("resume_id = ?", resumeID).Count(&n).Error
	return n, err
}

// ListResumes 按文件名、姓名、技能或正文模糊查询，不加载分块与正文
func (m *MySQL) ListResumes(ctx context.Context, q string, limit, offset int) ([]models.Resume, int64, error) {
	ctx, span := m.startSpan(ctx, "ListResumes", "SELECT", "resumes")
	defer span.End()

	query := m.db.WithContext(ctx).Model(&models.Resume{})
	if q = strings.TrimSpace(q); q != "" {
		p := likePattern(q)
		query = query.Where(
			"LOWER(original_name) LIKE ? OR LOWER(candidate_name) LIKE ? OR LOWER(JSON_EXTRACT(metadata_json, '$.skills')) LIKE ? OR LOWER(parsed_text) LIKE ?",
			p, p, p, p)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}

	var resumes []models.Resume
	err := query.Omit("parsed_text").
		Order("created_at DESC").Order("resume_id ASC").
		Limit(limit).Offset(offset).
		Find(&resumes).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int64("db.total", total), attribute.Int("db.returned", len(resumes)))
	return resumes, total, nil
}

// ListResumesWithChunks 按稳定顺序枚举简历及其分块，limit <= 0 表示全部
func (m *MySQL) ListResumesWithChunks(ctx context.Context, limit, offset int) ([]models.Resume, int64, error) {
	ctx, span := m.startSpan(ctx, "ListResumesWithChunks", "SELECT", "resumes")
	defer span.End()

	var total int64
	if err := m.db.WithContext(ctx).Model(&models.Resume{}).Count(&total).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}

	query := m.db.WithContext(ctx).Preload("Chunks", orderedChunks).
		Order("created_at ASC").Order("resume_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var resumes []models.Resume
	if err := query.Find(&resumes).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}
	span.SetAttributes(attribute.Int("db.returned", len(resumes)))
	return resumes, total, nil
}

// ResumeCursor 简历键集分页游标，对应排序键 (created_at, resume_id)
type ResumeCursor struct {
	CreatedAt time.Time
	ResumeID  string
}

// ScanResumesWithChunks 按 (created_at, resume_id) 键集分页枚举简历及其分块，after 为 nil 时从头开始。
// 扫描期间有简历被删除时不会跳过后续简历。
func (m *MySQL) ScanResumesWithChunks(ctx context.Context, after *ResumeCursor, limit int) ([]models.Resume, error) {
	ctx, span := m.startSpan(ctx, "ScanResumesWithChunks", "SELECT", "resumes")
	defer span.End()

	query := m.db.WithContext(ctx).Preload("Chunks", orderedChunks).
		Order("created_at ASC").Order("resume_id ASC").
		Limit(limit)
	if after != nil {
		query = query.Where("created_at > ? OR (created_at = ? AND resume_id > ?)",
			after.CreatedAt, after.CreatedAt, after.ResumeID)
	}

	var resumes []models.Resume
	if err := query.Find(&resumes).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	span.SetAttributes(attribute.Int("db.returned", len(resumes)))
	return resumes, nil
}

// ResumesByIDs 批量查询简历的展示字段
func (m *MySQL) ResumesByIDs(ctx context.Context, ids []string) (map[string]models.Resume, error) {
	out := make(map[string]models.Resume, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var resumes []models.Resume
	err := m.db.WithContext(ctx).
		Select("resume_id", "original_name", "candidate_name").
		Where("resume_id IN ?", ids).
		Find(&resumes).Error
	if err != nil {
		return nil, err
	}
	for _, r := range resumes {
		out[r.ResumeID] = r
	}
	return out, nil
}

// DeleteResume 删除简历及分块并写入删除事件，返回被删除的行以便清理外部存储
func (m *MySQL) DeleteResume(ctx context.Context, resumeID string, event *models.OutboxMessage) (*models.Resume, error) {
	ctx, span := m.startSpan(ctx, "DeleteResume", "DELETE", "resumes")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("开始事务失败: %w", tx.Error)
	}
	defer tx.Rollback()

	var resume models.Resume
	if err := tx.Omit("parsed_text").Where("resume_id = ?", resumeID).First(&resume).Error; err != nil {
		return nil, notFound(err, "DeleteResume", "Resume not found")
	}
	if err := tx.Where("resume_id = ?", resumeID).Delete(&models.ResumeChunk{}).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("删除简历分块失败: %w", err)
	}
	if err := tx.Where("resume_id = ?", resumeID).Delete(&models.Resume{}).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("删除简历失败: %w", err)
	}
	if event != nil {
		if err := tx.Create(event).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("写入outbox事件失败: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}
	return &resume, nil
}

// ---------------- 岗位 ----------------

// JobFilter 岗位列表查询条件
type JobFilter struct {
	Query    string
	Company  string
	Location string
	Limit    int
	Offset   int
}

// CreateJob 写入岗位及其分块
func (m *MySQL) CreateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error {
	ctx, span := m.startSpan(ctx, "CreateJob", "INSERT", "jobs")
	defer span.End()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Chunks").Create(job).Error; err != nil {
			return fmt.Errorf("保存岗位失败: %w", err)
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("保存岗位分块失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
	}
	return err
}

// GetJob 获取岗位，包括已停用的岗位
func (m *MySQL) GetJob(ctx context.Context, jobID string, withChunks bool) (*models.Job, error) {
	q := m.db.WithContext(ctx)
	if withChunks {
		q = q.Preload("Chunks", orderedChunks)
	}
	var job models.Job
	if err := q.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, notFound(err, "GetJob", "Job not found")
	}
	return &job, nil
}

// UpdateJob 保存岗位字段，chunks 非 nil 时整体替换分块
func (m *MySQL) UpdateJob(ctx context.Context, job *models.Job, chunks []models.JobChunk) error {
	ctx, span := m.startSpan(ctx, "UpdateJob", "UPDATE", "jobs")
	defer span.End()

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Chunks", "created_at").Save(job).Error; err != nil {
			return fmt.Errorf("更新岗位失败: %w", err)
		}
		if chunks == nil {
			return nil
		}
		if err := tx.Where("job_id = ?", job.JobID).Delete(&models.JobChunk{}).Error; err != nil {
			return fmt.Errorf("删除旧岗位分块失败: %w", err)
		}
		if len(chunks) > 0 {
			if err := tx.Create(&chunks).Error; err != nil {
				return fmt.Errorf("保存岗位分块失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
	}
	return err
}

// DeactivateJob 软删除岗位
func (m *MySQL) DeactivateJob(ctx context.Context, jobID string) error {
	res := m.db.WithContext(ctx).Model(&models.Job{}).Where("job_id = ?", jobID).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// 已停用的岗位再次删除时 RowsAffected 也为 0
		var n int64
		if err := m.db.WithContext(ctx).Model(&models.Job{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return matching.NewNotFoundError("DeactivateJob", "Job not found")
		}
	}
	return nil
}

// ListJobs 查询在招岗位，按创建时间倒序
func (m *MySQL) ListJobs(ctx context.Context, f JobFilter) ([]models.Job, int64, error) {
	ctx, span := m.startSpan(ctx, "ListJobs", "SELECT", "jobs")
	defer span.End()

	query := m.db.WithContext(ctx).Model(&models.Job{}).Where("is_active = ?", true)
	if q := strings.TrimSpace(f.Query); q != "" {
		p := likePattern(q)
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(company) LIKE ? OR LOWER(description) LIKE ? OR LOWER(skills_json) LIKE ?",
			p, p, p, p)
	}
	if c := strings.TrimSpace(f.Company); c != "" {
		query = query.Where("LOWER(company) LIKE ?", likePattern(c))
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		query = query.Where("LOWER(location) LIKE ?", likePattern(l))
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}
	var jobs []models.Job
	err := query.Order("created_at DESC").Order("job_id ASC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&jobs).Error
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, 0, err
	}
	return jobs, total, nil
}

// ---------------- 匹配结果 ----------------

// ReplaceMatches 在一个事务中删除岗位旧匹配、写入新匹配与 outbox 事件
func (m *MySQL) ReplaceMatches(ctx context.Context, jobID string, matches []models.JobMatch, event *models.OutboxMessage) error {
	ctx, span := m.startSpan(ctx, "ReplaceMatches", "REPLACE", "job_matches")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", jobID), attribute.Int("match.count", len(matches)))

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		tracing.RecordError(span, tx.Error, tracing.ErrorTypeDB)
		return fmt.Errorf("开始事务失败: %w", tx.Error)
	}
	defer tx.Rollback()

	if err := tx.Where("job_id = ?", jobID).Delete(&models.JobMatch{}).Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("删除旧匹配结果失败: %w", err)
	}
	if len(matches) > 0 {
		if err := tx.Create(&matches).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("保存匹配结果失败: %w", err)
		}
	}
	if event != nil {
		if err := tx.Create(event).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return fmt.Errorf("写入outbox事件失败: %w", err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// ListMatches 按分数降序、简历ID升序返回岗位的已保存匹配
func (m *MySQL) ListMatches(ctx context.Context, jobID string) ([]models.JobMatch, error) {
	var matches []models.JobMatch
	err := m.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("score DESC").Order("resume_id ASC").
		Find(&matches).Error
	return matches, err
}
