package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/krn-labs/gripeboard/src/api/chain"
	"github.com/krn-labs/gripeboard/src/api/types"
)

type stubOracle struct {
	verdict bool
	called  bool
	claim   chain.PaymentClaim
}

func (s *stubOracle) VerifyPayment(_ context.Context, claim chain.PaymentClaim) bool {
	s.called = true
	s.claim = claim
	return s.verdict
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	return db, mock
}

func testConfig() Config {
	return Config{
		TreasuryAddr:  "0xt",
		CoinType:      "0xpkg::krn::KRN",
		FlagPriceKRN:  3,
		FlagThreshold: 2,
	}
}

func postRow(t *testing.T, id uint64, stars, flags int, flagged bool) *sqlmock.Rows {
	t.Helper()
	return sqlmock.NewRows([]string{
		"id", "message", "author_addr", "fingerprint", "star_count", "flag_count", "is_flagged", "created_at",
	}).AddRow(id, "m", nil, 0, stars, flags, flagged, time.Now())
}

func countRow(n int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count(*)"}).AddRow(n)
}

func TestToggleStarFirstAdd(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 0, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `stars`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ToggleStar(context.Background(), 1, "0xa", DirUp, "DigestA")
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: true, Count: 1, Cost: 1, Op: OpStarAdd}, res)

	// The oracle must have been asked for exactly the computed cost.
	assert.True(t, oracle.called)
	assert.Equal(t, int64(1), oracle.claim.AmountKRN)
	assert.Equal(t, "0xa", oracle.claim.PayerAddr)
	assert.Equal(t, "DigestA", oracle.claim.TxDigest)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleStarSecondAddCostsTwo(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 1, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(1))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `stars`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ToggleStar(context.Background(), 1, "0xb", DirUp, "DigestB")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, int64(2), res.Cost)
	assert.Equal(t, int64(2), oracle.claim.AmountKRN)

	require.NoError(t, mock.ExpectationsWereMet())
}

// Two adds arriving back to back serialize on the locked post row: the
// second one prices off the count the first one committed, and the
// counter lands at exactly two.
func TestToggleStarBackToBackAdds(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	for _, stars := range []int{0, 1} {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, stars, 0, false))
		mock.ExpectQuery("SELECT count").WillReturnRows(countRow(stars))
		mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
		mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO `stars`").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	first, err := svc.ToggleStar(context.Background(), 1, "0xa", DirUp, "DigestH")
	require.NoError(t, err)
	second, err := svc.ToggleStar(context.Background(), 1, "0xb", DirUp, "DigestI")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Count)
	assert.Equal(t, int64(1), first.Cost)
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, int64(2), second.Cost)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleStarAlreadyStarred(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 2, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(2))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(1))
	mock.ExpectRollback()

	_, err := svc.ToggleStar(context.Background(), 1, "0xa", DirUp, "DigestC")
	require.Error(t, err)
	assert.Equal(t, KindAlreadyStarred, KindOf(err))
	assert.False(t, oracle.called, "state conflicts must be rejected before the oracle is consulted")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleStarPaymentNotVerified(t *testing.T) {
	db, mock := newMockDB(t)
	svc := New(db, &stubOracle{verdict: false}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 0, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	_, err := svc.ToggleStar(context.Background(), 1, "0xa", DirUp, "DigestD")
	require.Error(t, err)
	assert.Equal(t, KindPaymentNotVerified, KindOf(err))

	// Rollback released the digest along with everything else.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleStarReplayedDigest(t *testing.T) {
	db, mock := newMockDB(t)
	svc := New(db, &stubOracle{verdict: true}, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 0, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO `consumed_digests`").
		WillReturnError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := svc.ToggleStar(context.Background(), 1, "0xa", DirUp, "DigestSpent")
	require.Error(t, err)
	assert.Equal(t, KindDigestUsed, KindOf(err))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleStarRemove(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 3, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(3))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(1))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM `stars`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ToggleStar(context.Background(), 1, "0xa", DirDown, "DigestE")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, int64(2), res.Cost, "removing one's own single star costs 2")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEvictStar(t *testing.T) {
	db, mock := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 1, 2, 0, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(2))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(1))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT \\* FROM `stars`").WillReturnRows(
		sqlmock.NewRows([]string{"post_id", "addr", "created_at"}).AddRow(1, "0xb", time.Now()))
	mock.ExpectExec("DELETE FROM `stars`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.EvictStar(context.Background(), 1, "0xmod", "DigestF")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, int64(4), res.Cost, "double the full star count")
	assert.Equal(t, int64(4), oracle.claim.AmountKRN)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleFlagCrossesThreshold(t *testing.T) {
	db, mock := newMockDB(t)
	svc := New(db, &stubOracle{verdict: true}, testConfig())

	var alerted *types.Post
	svc.OnFlagged(func(p types.Post) { alerted = &p })

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `posts`.* FOR UPDATE").WillReturnRows(postRow(t, 7, 0, 1, false))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(1))
	mock.ExpectQuery("SELECT count").WillReturnRows(countRow(0))
	mock.ExpectExec("INSERT INTO `consumed_digests`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `flags`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `posts`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := svc.ToggleFlag(context.Background(), 7, "0xa", DirUp, "spam", "DigestG")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, int64(3), res.Cost, "flags cost the fixed configured price")

	require.NotNil(t, alerted, "crossing the threshold fires the moderation hook")
	assert.Equal(t, uint64(7), alerted.ID)
	assert.True(t, alerted.IsFlagged)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleValidation(t *testing.T) {
	db, _ := newMockDB(t)
	oracle := &stubOracle{verdict: true}
	svc := New(db, oracle, testConfig())

	cases := []struct {
		name   string
		postID uint64
		addr   string
		dir    Direction
		digest string
	}{
		{"missing post", 0, "0xa", DirUp, "D"},
		{"missing addr", 1, "", DirUp, "D"},
		{"missing digest", 1, "0xa", DirUp, ""},
		{"bad direction", 1, "0xa", Direction("sideways"), "D"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ToggleStar(context.Background(), tc.postID, tc.addr, tc.dir, tc.digest)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
	assert.False(t, oracle.called, "validation failures must not reach the oracle")
}
