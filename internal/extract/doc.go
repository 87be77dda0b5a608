// Package extract reads TAC workbooks into long-form fact records.
//
// Each workbook is named TAC_<Trusts|FTs>_<YYYY-YY>.xlsx. The extractor picks
// the data worksheet with MatchSheet, finds the header row, resolves the
// stable key columns plus the organisation and amount columns by normalised
// header name, and coerces amounts to numbers or null.
//
// Workbooks without a recognisable worksheet return ErrWorksheetNotRecognised;
// callers skip them with a warning rather than failing the batch.
package extract
