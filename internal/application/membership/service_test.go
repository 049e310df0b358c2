package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-classroom-api/internal/domain"
)

type mockGroupReader struct{ mock.Mock }

func (m *mockGroupReader) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	args := m.Called(ctx, groupID)
	if g, _ := args.Get(0).(*domain.Group); g != nil {
		return g, args.Error(1)
	}
	return nil, args.Error(1)
}

func testGroup() *domain.Group {
	return &domain.Group{
		GroupID:      "g1",
		Name:         "cohort-42",
		InstructorID: "instructor-1",
		StudentIDs:   []string{"student-1", "student-2"},
	}
}

func TestAuthorize_Admin_AlwaysAllowed(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "someone-else", Role: domain.RoleAdmin}
	assert.NoError(t, r.Authorize(testGroup(), caller, ActionPostMessage))
	assert.NoError(t, r.Authorize(testGroup(), caller, ActionReadMessages))
}

func TestAuthorize_Instructor_OfGroup(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "instructor-1", Role: domain.RoleInstructor}
	assert.NoError(t, r.Authorize(testGroup(), caller, ActionPostMessage))
}

func TestAuthorize_Student_InGroup(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "student-2", Role: domain.RoleStudent}
	assert.NoError(t, r.Authorize(testGroup(), caller, ActionReadMessages))
}

func TestAuthorize_Student_NotInGroup_Forbidden(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "student-99", Role: domain.RoleStudent}
	err := r.Authorize(testGroup(), caller, ActionPostMessage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestAuthorize_InstructorOfOtherGroup_Forbidden(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "instructor-2", Role: domain.RoleInstructor}
	err := r.Authorize(testGroup(), caller, ActionPostMessage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestAuthorize_InstructorListedAsStudent_Allowed(t *testing.T) {
	// Membership is boolean: listed in students is enough, whatever the role says.
	g := testGroup()
	g.StudentIDs = append(g.StudentIDs, "instructor-2")
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "instructor-2", Role: domain.RoleInstructor}
	assert.NoError(t, r.Authorize(g, caller, ActionPostMessage))
}

func TestAuthorize_UnknownRole_FailsClosed(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "student-1", Role: domain.Role("superuser")}
	err := r.Authorize(testGroup(), caller, ActionPostMessage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestAuthorize_UnknownAction_FailsClosed(t *testing.T) {
	r := NewResolver(nil)
	caller := domain.Identity{UserID: "admin-1", Role: domain.RoleAdmin}
	err := r.Authorize(testGroup(), caller, Action("deleteGroup"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestAuthorize_NoInstructorSet_EmptyCallerID_NotMatched(t *testing.T) {
	g := testGroup()
	g.InstructorID = ""
	r := NewResolver(nil)
	err := r.Authorize(g, domain.Identity{UserID: "", Role: domain.RoleInstructor}, ActionPostMessage)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestLoadGroup_Missing_ReturnsNotFound(t *testing.T) {
	gr := &mockGroupReader{}
	gr.On("Get", mock.Anything, "gone").Return(nil, domain.ErrNotFound)

	r := NewResolver(gr)
	_, err := r.LoadGroup(context.Background(), "gone")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	gr.AssertExpectations(t)
}
