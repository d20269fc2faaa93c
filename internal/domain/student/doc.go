// Package student holds the academy's student record and the records hung off
// it.
//
// # Records
//
//   - Student: profile, category, current rank, join and promotion dates
//   - AttendanceRecord: one class, present or absent
//   - PaymentRecord: the fee for one month
//   - PromotionRecord: one step of rank history
//
// # Writers
//
// Profile fields are written through Repository.Update. Rank and last
// promotion date are written only by PromotionApplier.ApplyPromotion, which
// compares the stored promotion date against the one the caller evaluated
// and refuses the write if another promotion landed first:
//
//	verdict := s.Eligibility(asOf)
//	rec := &PromotionRecord{StudentID: s.ID, From: s.CurrentRank, To: *verdict.NextRank, Date: asOf}
//	err := promotions.ApplyPromotion(ctx, rec, s.LastPromotionDate)
//
// # IDs
//
// Students receive short access IDs built from their first name:
//
//	id, err := GenerateID(ctx, "maria souza", repo.Exists) // "Maria4821"
package student
