package models

// DefaultOntologyID is the ontology every requester can use regardless of ownership
const DefaultOntologyID = "default"

// Ontology holds the metadata of an uploaded ontology file
type Ontology struct {
	ID          string `json:"id" bson:"_id" db:"ID"`
	Name        string `json:"name" bson:"name" db:"NAME"`
	Description string `json:"description" bson:"description" db:"DESCRIPTION"`
	Filename    string `json:"filename" bson:"filename" db:"FILENAME"`
	StoragePath string `json:"storagePath" bson:"storagePath" db:"STORAGE_PATH"`
	DownloadURL string `json:"downloadURL" bson:"downloadURL" db:"DOWNLOAD_URL"`
	UploadedBy  string `json:"uploadedBy" bson:"uploadedBy" db:"UPLOADED_BY"`
	UploadedAt  string `json:"uploadedAt" bson:"uploadedAt" db:"UPLOADED_AT"`
	Size        int64  `json:"size" bson:"size" db:"SIZE"`
	MimeType    string `json:"mimeType" bson:"mimeType" db:"MIME_TYPE"`
}

// IsVisibleTo reports whether the given requester may use the ontology
func (o *Ontology) IsVisibleTo(uid string) bool {
	return o.ID == DefaultOntologyID || o.UploadedBy == uid
}
