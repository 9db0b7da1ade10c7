package email

const (
	subjectQuoteSentFmt = "Offerte %s van %s"
)
