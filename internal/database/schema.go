package database

// schema holds the MySQL tables backing the document stores. Consent
// requests keep the full document as JSON with the filterable fields
// duplicated into columns.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS CONSENT_REQUEST (
		ID VARCHAR(64) NOT NULL,
		REQUEST_NAME VARCHAR(255) NOT NULL,
		REQUESTER_ID VARCHAR(255) NOT NULL DEFAULT '',
		STATUS VARCHAR(32) NOT NULL,
		OWNERS JSON NOT NULL,
		CREATED_TIME BIGINT NOT NULL,
		DOCUMENT JSON NOT NULL,
		PRIMARY KEY (ID),
		INDEX IDX_CONSENT_REQUEST_REQUESTER (REQUESTER_ID),
		INDEX IDX_CONSENT_REQUEST_STATUS (STATUS)
	)`,
	`CREATE TABLE IF NOT EXISTS ONTOLOGY (
		ID VARCHAR(64) NOT NULL,
		NAME VARCHAR(255) NOT NULL,
		DESCRIPTION TEXT,
		FILENAME VARCHAR(255) NOT NULL,
		STORAGE_PATH VARCHAR(512) NOT NULL,
		DOWNLOAD_URL VARCHAR(512) NOT NULL,
		UPLOADED_BY VARCHAR(255) NOT NULL,
		UPLOADED_AT VARCHAR(64) NOT NULL,
		SIZE BIGINT NOT NULL,
		MIME_TYPE VARCHAR(255) NOT NULL,
		PRIMARY KEY (ID),
		INDEX IDX_ONTOLOGY_UPLOADED_BY (UPLOADED_BY)
	)`,
	`CREATE TABLE IF NOT EXISTS APP_USER (
		UID VARCHAR(255) NOT NULL,
		ROLE VARCHAR(32) NOT NULL,
		NAME VARCHAR(255) NOT NULL,
		EMAIL VARCHAR(255) NOT NULL,
		API_TOKEN TEXT,
		MONGO_USER_ID VARCHAR(255) NOT NULL DEFAULT '',
		CREATED_AT VARCHAR(64) NOT NULL,
		PRIMARY KEY (ROLE, UID),
		INDEX IDX_APP_USER_EMAIL (ROLE, EMAIL)
	)`,
}
