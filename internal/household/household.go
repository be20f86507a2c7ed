// Package household gates membership management and recipe review by the
// caller's role in their household.
package household

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dinner-planner/internal/api"
)

// ErrForbidden is returned before any request when the role does not allow
// the action.
var ErrForbidden = errors.New("your role does not allow this action")

// Role is a member's role in the household.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Decision on a pending recipe.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

func (r Role) CanReviewRecipes() bool {
	return r == RoleOwner || r == RoleAdmin
}

func (r Role) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Client is the household and recipe part of the backend.
type Client interface {
	MyHousehold(ctx context.Context) (*api.HouseholdResponse, error)
	InviteMember(ctx context.Context, email string) error
	RemoveMember(ctx context.Context, userID string) error
	SubmitRecipe(ctx context.Context, sub api.RecipeSubmission) (*api.Recipe, error)
	PendingRecipes(ctx context.Context) ([]api.Recipe, error)
	ReviewRecipe(ctx context.Context, id string, decision api.ReviewDecision) (*api.Recipe, error)
}

// Service acts on behalf of the signed-in member.
type Service struct {
	client    Client
	household api.Household
	role      Role
}

// Load fetches the caller's household and role.
func Load(ctx context.Context, client Client) (*Service, error) {
	resp, err := client.MyHousehold(ctx)
	if err != nil {
		return nil, fmt.Errorf("load household: %w", err)
	}
	return &Service{
		client:    client,
		household: resp.Household,
		role:      Role(strings.ToLower(resp.Role)),
	}, nil
}

func (s *Service) Role() Role { return s.role }

func (s *Service) Household() api.Household { return s.household }

// Invite adds email to the household. Owners and admins only.
func (s *Service) Invite(ctx context.Context, email string) error {
	if !s.role.CanManageMembers() {
		return ErrForbidden
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", email)
	}
	return s.client.InviteMember(ctx, email)
}

// RemoveMember takes userID out of the household. Owners and admins only,
// and the owner cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, userID string) error {
	if !s.role.CanManageMembers() {
		return ErrForbidden
	}
	for _, m := range s.household.Members {
		if m.UserID == userID && Role(m.Role) == RoleOwner {
			return ErrForbidden
		}
	}
	if err := s.client.RemoveMember(ctx, userID); err != nil {
		return err
	}

	kept := s.household.Members[:0:0]
	for _, m := range s.household.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	s.household.Members = kept
	return nil
}

// SubmitRecipe puts a recipe into the review queue. Any member may submit.
func (s *Service) SubmitRecipe(ctx context.Context, sub api.RecipeSubmission) (*api.Recipe, error) {
	return s.client.SubmitRecipe(ctx, sub)
}

// PendingRecipes lists the review queue. Reviewers only.
func (s *Service) PendingRecipes(ctx context.Context) ([]api.Recipe, error) {
	if !s.role.CanReviewRecipes() {
		return nil, ErrForbidden
	}
	return s.client.PendingRecipes(ctx)
}

// Review approves or rejects a pending recipe. Reviewers only.
func (s *Service) Review(ctx context.Context, recipeID string, decision Decision, note string) (*api.Recipe, error) {
	if !s.role.CanReviewRecipes() {
		return nil, ErrForbidden
	}
	if decision != Approve && decision != Reject {
		return nil, fmt.Errorf("unknown decision %q", decision)
	}
	return s.client.ReviewRecipe(ctx, recipeID, api.ReviewDecision{Decision: string(decision), Note: note})
}
