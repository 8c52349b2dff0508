package common

const (
	// RedisStreamDocumentEmbedding carries {"document_id": "..."} payloads for freshly ingested documents.
	RedisStreamDocumentEmbedding = "document.embedding"

	RedisStreamGroup    = "embedding-group"
	RedisStreamConsumer = "embedding-consumer"

	// Section names produced by the transcript parser.
	SectionPreparedRemarks = "prepared_remarks"
	SectionQA              = "qa"
)
