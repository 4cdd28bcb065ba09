package domain

// Notice is a user-visible degradation message. The sync layer only ever
// surfaces this closed set, never raw error objects.
type Notice string

const (
	NoticeProfileUnavailable Notice = "profile unavailable"
	NoticeStatsUnavailable   Notice = "statistics unavailable, retry later"
	NoticeBadgesUnavailable  Notice = "badge list unavailable"
)
