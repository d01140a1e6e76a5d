package workflow

var BuiltinTemplates = []Template{
	{
		ID:          "client_onboarding",
		Name:        "Client Onboarding",
		Description: "New household: welcome call through the 90-day check-in",
		Trigger:     TriggerEntityCreated,
		Enabled:     true,
		Steps: []Step{
			{ID: "onb_welcome_call", Label: "Welcome call", TaskSubject: "Onboarding: Welcome call", TaskDescription: "Call the household to welcome them and confirm contact details.", TaskPriority: PriorityHigh, DelayDays: 0},
			{ID: "onb_send_paperwork", Label: "Send account paperwork", TaskSubject: "Onboarding: Send account paperwork", TaskDescription: "Send account opening and advisory agreement paperwork.", TaskPriority: PriorityHigh, DelayDays: 1},
			{ID: "onb_collect_documents", Label: "Collect identity documents", TaskSubject: "Onboarding: Collect identity documents", TaskDescription: "Collect government ID and proof of address for every account holder.", TaskPriority: PriorityNormal, DelayDays: 3},
			{ID: "onb_fund_accounts", Label: "Confirm account funding", TaskSubject: "Onboarding: Confirm account funding", TaskDescription: "Verify transfers have been initiated and accounts are funded.", TaskPriority: PriorityNormal, DelayDays: 7},
			{ID: "onb_two_week_checkin", Label: "Two-week check-in", TaskSubject: "Onboarding: Two-week check-in", TaskDescription: "Check in on the onboarding experience and answer open questions.", TaskPriority: PriorityNormal, DelayDays: 14},
			{ID: "onb_ninety_day_review", Label: "90-day review", TaskSubject: "Onboarding: 90-day review", TaskDescription: "Schedule the first portfolio review with the household.", TaskPriority: PriorityNormal, DelayDays: 90},
		},
	},
	{
		ID:                     "id_renewal",
		Name:                   "ID Renewal",
		Description:            "Replace an expiring government ID on file",
		Trigger:                TriggerGenericTaskCompleted,
		TriggerSubjectContains: "ID Renewal",
		Enabled:                true,
		Steps: []Step{
			{ID: "idr_request_new_id", Label: "Request updated ID", TaskSubject: "ID Renewal: Request updated ID", TaskDescription: "Ask the client for a copy of the renewed ID.", TaskPriority: PriorityHigh, DelayDays: 0},
			{ID: "idr_follow_up", Label: "Follow up on ID", TaskSubject: "ID Renewal: Follow up", TaskDescription: "Follow up if the renewed ID has not been received.", TaskPriority: PriorityNormal, DelayDays: 7},
			{ID: "idr_update_custodian", Label: "Update custodian records", TaskSubject: "ID Renewal: Update custodian records", TaskDescription: "Submit the renewed ID to the custodian.", TaskPriority: PriorityNormal, DelayDays: 10},
		},
	},
	{
		ID:          "document_follow_up",
		Name:        "Document Follow-Up",
		Description: "Chase signatures on documents sent for e-signature",
		Trigger:     TriggerDocumentSent,
		Enabled:     true,
		Steps: []Step{
			{ID: "doc_first_reminder", Label: "First signature reminder", TaskSubject: "Documents: First signature reminder", TaskDescription: "Remind the client to sign the outstanding documents.", TaskPriority: PriorityNormal, DelayDays: 3},
			{ID: "doc_second_reminder", Label: "Second signature reminder", TaskSubject: "Documents: Second signature reminder", TaskDescription: "Call the client about the unsigned documents.", TaskPriority: PriorityHigh, DelayDays: 7},
		},
	},
	{
		ID:          "document_filing",
		Name:        "Document Filing",
		Description: "File completed documents and notify operations",
		Trigger:     TriggerDocumentCompleted,
		Enabled:     true,
		Steps: []Step{
			{ID: "file_signed_documents", Label: "File signed documents", TaskSubject: "Documents: File signed copies", TaskDescription: "Store the completed documents in the household record.", TaskPriority: PriorityNormal, DelayDays: 0},
			{ID: "file_notify_operations", Label: "Notify operations", TaskSubject: "Documents: Notify operations", TaskDescription: "Let operations know the paperwork is complete.", TaskPriority: PriorityNormal, DelayDays: 1},
		},
	},
	{
		ID:          "annual_review_follow_up",
		Name:        "Annual Review Follow-Up",
		Description: "Action items after an annual review",
		Trigger:     TriggerReviewCompleted,
		Enabled:     true,
		Steps: []Step{
			{ID: "rev_send_summary", Label: "Send review summary", TaskSubject: "Review: Send summary", TaskDescription: "Send the client a written summary of the review.", TaskPriority: PriorityNormal, DelayDays: 0},
			{ID: "rev_rebalance", Label: "Rebalance accounts", TaskSubject: "Review: Rebalance accounts", TaskDescription: "Apply any allocation changes agreed in the review.", TaskPriority: PriorityNormal, DelayDays: 5},
			{ID: "rev_schedule_next", Label: "Schedule next review", TaskSubject: "Review: Schedule next review", TaskDescription: "Put next year's review on the calendar.", TaskPriority: PriorityLow, DelayDays: 30},
		},
	},
	{
		ID:          "meeting_follow_up",
		Name:        "Meeting Follow-Up",
		Description: "Notes and follow-up after a client meeting",
		Trigger:     TriggerMeetingCompleted,
		Enabled:     true,
		Steps: []Step{
			{ID: "mtg_log_notes", Label: "Log meeting notes", TaskSubject: "Meeting: Log notes", TaskDescription: "Record meeting notes and compliance disclosures.", TaskPriority: PriorityHigh, DelayDays: 0},
			{ID: "mtg_send_recap", Label: "Send recap email", TaskSubject: "Meeting: Send recap", TaskDescription: "Email the client a recap with next steps.", TaskPriority: PriorityNormal, DelayDays: 1},
		},
	},
	{
		ID:          "client_lifecycle",
		Name:        "Client Lifecycle Check-Ins",
		Description: "Escalating check-ins over the first year of the relationship",
		Trigger:     TriggerScheduled,
		Enabled:     true,
		Reevaluate:  true,
		Steps: []Step{
			{ID: "life_30_day_checkin", Label: "30-day check-in", TaskSubject: "Lifecycle: 30-day check-in", TaskDescription: "First-month satisfaction call.", TaskPriority: PriorityNormal, Condition: &Condition{Type: ConditionDaysSinceCreated, MinDays: 30}},
			{ID: "life_missing_ips", Label: "Investment policy statement", TaskSubject: "Lifecycle: Prepare investment policy statement", TaskDescription: "No investment policy statement task exists yet for this household.", TaskPriority: PriorityHigh, Condition: &Condition{Type: ConditionTaskMissing, SubjectContains: "Investment Policy"}},
			{ID: "life_180_day_checkin", Label: "6-month check-in", TaskSubject: "Lifecycle: 6-month check-in", TaskDescription: "Mid-year relationship check-in.", TaskPriority: PriorityNormal, Condition: &Condition{Type: ConditionDaysSinceCreated, MinDays: 180}},
			{ID: "life_annual_review", Label: "First annual review", TaskSubject: "Lifecycle: Schedule first annual review", TaskDescription: "Book the first annual review.", TaskPriority: PriorityHigh, Condition: &Condition{Type: ConditionDaysSinceCreated, MinDays: 365}},
		},
	},
}
