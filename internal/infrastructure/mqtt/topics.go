package mqtt

// Topic layout:
//
//	facility/system/status      retained online/offline status
//	facility/reports/<site-key> one message per accepted report
const (
	topicPrefix = "facility"
)

// SystemStatusTopic is where the client publishes its online/offline state.
func SystemStatusTopic() string {
	return topicPrefix + "/system/status"
}

// SiteReportTopic returns the publish topic for a site's reports.
func SiteReportTopic(siteKey string) string {
	return topicPrefix + "/reports/" + siteKey
}
