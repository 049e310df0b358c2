package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable       = "enable"
	fieldRead         = "read"
	fieldAtRisk       = "at_risk"
	fieldMessageIDs   = "message_ids"
	fieldRefreshToken = "refresh_token"
	fieldUpdatedAt    = "updated_at"
)
