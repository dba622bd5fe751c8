package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-advisor-api/internal/models"
	appErrors "github.com/noah-isme/sma-advisor-api/pkg/errors"
)

type privilegedStoreStub struct {
	deletedUsers []string
	feePayments  []models.Money
	corrections  []string
	renames      []string
}

func (s *privilegedStoreStub) DeleteUser(_ context.Context, userID string) error {
	s.deletedUsers = append(s.deletedUsers, userID)
	return nil
}

func (s *privilegedStoreStub) RecordFeePayment(_ context.Context, _, _, studentID string, amount models.Money, _ time.Time) error {
	s.feePayments = append(s.feePayments, amount)
	return nil
}

func (s *privilegedStoreStub) CorrectAttendance(_ context.Context, _, studentID string, _ time.Time, status string) error {
	s.corrections = append(s.corrections, studentID+":"+status)
	return nil
}

func (s *privilegedStoreStub) UpdateStudentName(_ context.Context, _, studentID, fullName string) error {
	s.renames = append(s.renames, studentID+":"+fullName)
	return nil
}

func actionOf(actionType models.ActionType, payload string) *models.PendingAction {
	return &models.PendingAction{
		ID:       "action-1",
		SchoolID: "school-1",
		Type:     actionType,
		Data:     json.RawMessage(payload),
		State:    models.ActionStateConfirmed,
	}
}

func TestExecutorDispatchesUserDelete(t *testing.T) {
	store := &privilegedStoreStub{}
	exec := NewActionExecutor(store, nil)

	err := exec.Execute(context.Background(), actionOf(models.ActionTypeUserDelete, `{"user_id":"u-9"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"u-9"}, store.deletedUsers)
}

func TestExecutorDispatchesFeePayment(t *testing.T) {
	store := &privilegedStoreStub{}
	exec := NewActionExecutor(store, nil)

	err := exec.Execute(context.Background(), actionOf(models.ActionTypeFeeRecordPayment,
		`{"class_id":"c-1","student_id":"s-1","amount_paise":250000,"paid_at":"2026-03-01T09:00:00Z"}`))
	require.NoError(t, err)
	require.Equal(t, []models.Money{250000}, store.feePayments)
}

func TestExecutorDispatchesAttendanceCorrection(t *testing.T) {
	store := &privilegedStoreStub{}
	exec := NewActionExecutor(store, nil)

	err := exec.Execute(context.Background(), actionOf(models.ActionTypeAttendanceCorrect,
		`{"student_id":"s-1","date":"2026-03-01","status":"P"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"s-1:P"}, store.corrections)
}

func TestExecutorDispatchesStudentUpdate(t *testing.T) {
	store := &privilegedStoreStub{}
	exec := NewActionExecutor(store, nil)

	err := exec.Execute(context.Background(), actionOf(models.ActionTypeStudentUpdate,
		`{"student_id":"s-1","full_name":"Asha Rao"}`))
	require.NoError(t, err)
	require.Equal(t, []string{"s-1:Asha Rao"}, store.renames)
}

func TestExecutorRejectsBadPayloads(t *testing.T) {
	store := &privilegedStoreStub{}
	exec := NewActionExecutor(store, nil)

	cases := []*models.PendingAction{
		actionOf(models.ActionTypeUserDelete, `{}`),
		actionOf(models.ActionTypeFeeRecordPayment, `{"student_id":"s-1","amount_paise":-5}`),
		actionOf(models.ActionTypeAttendanceCorrect, `{"student_id":"s-1","date":"01/03/2026","status":"P"}`),
		actionOf(models.ActionTypeAttendanceCorrect, `{"student_id":"s-1","date":"2026-03-01","status":"X"}`),
		actionOf(models.ActionTypeStudentUpdate, `{"student_id":"s-1"}`),
		actionOf(models.ActionTypeUserDelete, `not json`),
		actionOf(models.ActionType("unknown.op"), `{}`),
	}
	for i, action := range cases {
		err := exec.Execute(context.Background(), action)
		require.True(t, appErrors.Is(err, appErrors.ErrValidation), "case %d", i)
	}
	require.Empty(t, store.deletedUsers)
	require.Empty(t, store.feePayments)
	require.Empty(t, store.corrections)
	require.Empty(t, store.renames)
}

func TestExecutorSupports(t *testing.T) {
	exec := NewActionExecutor(&privilegedStoreStub{}, nil)

	require.True(t, exec.Supports(models.ActionTypeUserDelete))
	require.True(t, exec.Supports(models.ActionTypeFeeRecordPayment))
	require.False(t, exec.Supports(models.ActionType("unknown.op")))
}
