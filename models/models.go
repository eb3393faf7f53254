package models

// Consultation types (consultation.go) are plain values that live in memory
// for the length of a call. Only the rows below are persisted.

// Database schema overview:
// 1. users - one row per trainee email, team membership derived from the email domain
// 2. user_stats - per-user usage counters, created together with the user
// 3. waitlist - emails waiting for access, unique
// 4. scorecards - the evaluated outcome of a finished consultation, no transcript
// 5. scorecard_categories - one row per graded skill dimension of a scorecard
