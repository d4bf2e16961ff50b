package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArchiveType represents the kind of archive backend
type ArchiveType string

const (
	ArchiveTypeOrthanc     ArchiveType = "orthanc"
	ArchiveTypeObjectStore ArchiveType = "object_store"
)

// ArchiveConfig represents a tenant's archive backend configuration
type ArchiveConfig struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     uuid.UUID   `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name         string      `gorm:"type:varchar(255);not null" json:"name"`
	Type         ArchiveType `gorm:"type:varchar(50);not null" json:"type"`
	Endpoint     string      `gorm:"type:varchar(500);not null" json:"endpoint"`
	Port         int         `json:"port"`
	Bucket       string      `gorm:"type:varchar(255)" json:"bucket,omitempty"`
	Region       string      `gorm:"type:varchar(100)" json:"region,omitempty"`
	PathPrefix   string      `gorm:"type:varchar(255)" json:"path_prefix,omitempty"`
	Username     string      `gorm:"type:varchar(255)" json:"username,omitempty"`
	PasswordHash string      `gorm:"type:text" json:"-"` // Encrypted password
	APIKey       string      `gorm:"type:text" json:"-"` // Encrypted API key
	IsActive     bool        `gorm:"default:true" json:"is_active"`
	IsDefault    bool        `gorm:"default:false" json:"is_default"`
	Priority     int         `gorm:"default:100" json:"priority"`

	// Connection status tracking
	LastConnectionTest   time.Time `gorm:"index" json:"last_connection_test,omitempty"`
	LastConnectionStatus bool      `json:"last_connection_status,omitempty"`
	LastError            string    `gorm:"type:text" json:"last_error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (ArchiveConfig) TableName() string {
	return "archive_configs"
}

// BeforeCreate hook
func (a *ArchiveConfig) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// RoutingRule decides which archive receives an upload. Absent conditions
// are wildcards; all present conditions must match.
type RoutingRule struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`
	Priority int       `gorm:"not null;index" json:"priority"`

	// Conditions
	Location   string   `gorm:"type:varchar(255)" json:"location,omitempty"`
	ImageTypes []string `gorm:"type:text[];serializer:json" json:"image_types,omitempty"`
	PatientID  string   `gorm:"type:varchar(255)" json:"patient_id,omitempty"`
	LeadID     string   `gorm:"type:varchar(255)" json:"lead_id,omitempty"`

	// Action
	ArchiveID uuid.UUID `gorm:"type:uuid;not null" json:"archive_id"`
	Compress  bool      `gorm:"default:false" json:"compress"`

	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (RoutingRule) TableName() string {
	return "routing_rules"
}

// BeforeCreate hook
func (r *RoutingRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// RoutingContext carries the attributes routing rules match against.
type RoutingContext struct {
	Location  string `json:"location,omitempty"`
	ImageType string `json:"image_type,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	LeadID    string `json:"lead_id,omitempty"`
}

// ConnectionStatus represents the status of an archive connection
type ConnectionStatus struct {
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
}

// ConnectionTestRequest represents a request to test an archive connection
type ConnectionTestRequest struct {
	Type     ArchiveType `json:"type" binding:"required"`
	Endpoint string      `json:"endpoint" binding:"required"`
	Port     int         `json:"port"`
	Bucket   string      `json:"bucket,omitempty"`
	Region   string      `json:"region,omitempty"`
	Username string      `json:"username,omitempty"`
	Password string      `json:"password,omitempty"`
	APIKey   string      `json:"api_key,omitempty"`
}

// ArchiveConfigRequest represents a request to create/update an archive config
type ArchiveConfigRequest struct {
	Name       string      `json:"name" binding:"required"`
	Type       ArchiveType `json:"type" binding:"required"`
	Endpoint   string      `json:"endpoint" binding:"required"`
	Port       int         `json:"port"`
	Bucket     string      `json:"bucket,omitempty"`
	Region     string      `json:"region,omitempty"`
	PathPrefix string      `json:"path_prefix,omitempty"`
	Username   string      `json:"username,omitempty"`
	Password   string      `json:"password,omitempty"`
	APIKey     string      `json:"api_key,omitempty"`
	IsDefault  bool        `json:"is_default"`
	Priority   int         `json:"priority"`
}

// RoutingRuleRequest represents a request to create a routing rule
type RoutingRuleRequest struct {
	Name       string    `json:"name" binding:"required"`
	Priority   int       `json:"priority"`
	Location   string    `json:"location,omitempty"`
	ImageTypes []string  `json:"image_types,omitempty"`
	PatientID  string    `json:"patient_id,omitempty"`
	LeadID     string    `json:"lead_id,omitempty"`
	ArchiveID  uuid.UUID `json:"archive_id" binding:"required"`
	Compress   bool      `json:"compress"`
}

// UploadResult is the outcome of persisting a payload to an archive
type UploadResult struct {
	Success     bool      `json:"success"`
	ArchiveID   uuid.UUID `json:"archive_id"`
	StoragePath string    `json:"storage_path,omitempty"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// QueryResult is the outcome of querying an archive
type QueryResult struct {
	Success bool            `json:"success"`
	Records []ArchiveRecord `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ArchiveRecord is one stored study/instance returned by a query
type ArchiveRecord struct {
	ID          string                 `json:"id"`
	PatientID   string                 `json:"patient_id,omitempty"`
	PatientName string                 `json:"patient_name,omitempty"`
	StudyDate   string                 `json:"study_date,omitempty"`
	Modality    string                 `json:"modality,omitempty"`
	Attributes  map[string]interface{} `json:"attributes,omitempty"`
}

// ArchiveQuery carries query filters for an archive backend
type ArchiveQuery struct {
	PatientID   string `json:"patient_id,omitempty"`
	PatientName string `json:"patient_name,omitempty"`
	StudyDate   string `json:"study_date,omitempty"`
	Modality    string `json:"modality,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// UploadMetadata accompanies every stored payload. Tier and Extension
// shape the storage path: {namespace}/{artifactID}/{timestamp}/{tier}.{ext}.
type UploadMetadata struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	ArtifactID  string    `json:"artifact_id"`
	PatientID   string    `json:"patient_id,omitempty"`
	LeadID      string    `json:"lead_id,omitempty"`
	ImageType   string    `json:"image_type,omitempty"`
	DateTaken   string    `json:"date_taken,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Tier        string    `json:"tier,omitempty"`
	Extension   string    `json:"extension,omitempty"`
}
