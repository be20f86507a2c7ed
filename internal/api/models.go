package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Recipe is the denormalized recipe snapshot the backend returns.
type Recipe struct {
	ID           string   `json:"_id"`
	Title        string   `json:"title"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	IsVegetarian bool     `json:"isVegetarian,omitempty"`
	Complexity   string   `json:"complexity,omitempty"`
	SourceURL    string   `json:"sourceUrl,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Status       string   `json:"status,omitempty"`
}

// DaySuggestion is one calendar day's proposed plan within a suggestion set.
type DaySuggestion struct {
	Date      string  `json:"date"`
	DayName   string  `json:"dayName,omitempty"`
	IsSkipped bool    `json:"isSkipped"`
	Label     string  `json:"label,omitempty"`
	RecipeID  string  `json:"recipeId,omitempty"`
	Recipe    *Recipe `json:"recipe,omitempty"`
}

// SuggestionConstraints is the input to suggestion generation.
// DaysToSkip uses 0=Monday..6=Sunday.
type SuggestionConstraints struct {
	StartDate      string `json:"startDate"`
	DaysToSkip     []int  `json:"daysToSkip"`
	AvoidRepeats   bool   `json:"avoidRepeats,omitempty"`
	PreferSimple   bool   `json:"preferSimple,omitempty"`
	VegetarianOnly bool   `json:"vegetarianOnly,omitempty"`
}

// Validate checks DaysToSkip holds unique values in [0,6].
func (c SuggestionConstraints) Validate() error {
	if c.StartDate == "" {
		return fmt.Errorf("startDate is required")
	}
	seen := make(map[int]bool, len(c.DaysToSkip))
	for _, d := range c.DaysToSkip {
		if d < 0 || d > 6 {
			return fmt.Errorf("daysToSkip: %d out of range 0-6", d)
		}
		if seen[d] {
			return fmt.Errorf("daysToSkip: duplicate %d", d)
		}
		seen[d] = true
	}
	return nil
}

// AlternativeFilters is the filter subset forwarded to the alternative endpoint.
type AlternativeFilters struct {
	AvoidRepeats   bool `json:"avoidRepeats,omitempty"`
	PreferSimple   bool `json:"preferSimple,omitempty"`
	VegetarianOnly bool `json:"vegetarianOnly,omitempty"`
}

// AlternativeRequest asks for a recipe for Date that is not in ExcludedRecipeIDs.
type AlternativeRequest struct {
	Date              string   `json:"date"`
	ExcludedRecipeIDs []string `json:"excludeRecipeIds"`
	AlternativeFilters
}

// PlanRecipe is the recipeId field of a Plan. The backend sends either a raw
// id string or a populated recipe object.
type PlanRecipe struct {
	ID     string
	Recipe *Recipe
}

func (p *PlanRecipe) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = PlanRecipe{}
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*p = PlanRecipe{ID: id}
		return nil
	}

	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("recipeId: %w", err)
	}
	*p = PlanRecipe{ID: r.ID, Recipe: &r}
	return nil
}

func (p PlanRecipe) MarshalJSON() ([]byte, error) {
	if p.Recipe != nil {
		return json.Marshal(p.Recipe)
	}
	if p.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(p.ID)
}

// Plan is a persisted single-day assignment owned by the server.
type Plan struct {
	ID          string      `json:"_id"`
	Date        string      `json:"date"`
	RecipeID    *PlanRecipe `json:"recipeId,omitempty"`
	Label       string      `json:"label,omitempty"`
	IsConfirmed bool        `json:"isConfirmed"`
}

// HasRecipe reports whether the plan carries a recipe reference.
func (p Plan) HasRecipe() bool {
	return p.RecipeID != nil && p.RecipeID.ID != ""
}

// Title returns the populated recipe title, or "" for a raw id or no recipe.
func (p Plan) Title() string {
	if p.RecipeID == nil || p.RecipeID.Recipe == nil {
		return ""
	}
	return p.RecipeID.Recipe.Title
}

// PlanUpdate is the body of PUT /plans/:date.
type PlanUpdate struct {
	RecipeID    string `json:"recipeId"`
	IsConfirmed bool   `json:"isConfirmed"`
}

// ApproveResponse is returned by POST /suggestions/approve.
type ApproveResponse struct {
	Plans []Plan `json:"plans"`
}

// User is the cached user profile.
type User struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	HouseholdID string `json:"householdId,omitempty"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Member is a household member with their role.
type Member struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Household is the shared household of the signed-in user.
type Household struct {
	ID      string   `json:"_id"`
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

// HouseholdResponse is returned by GET /households/mine.
type HouseholdResponse struct {
	Household Household `json:"household"`
	Role      string    `json:"role"`
}

// RecipeSubmission is the body of POST /recipes.
type RecipeSubmission struct {
	Title        string   `json:"title"`
	ImageURL     string   `json:"imageUrl,omitempty"`
	SourceURL    string   `json:"sourceUrl,omitempty"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Instructions []string `json:"instructions,omitempty"`
	IsVegetarian bool     `json:"isVegetarian,omitempty"`
	Complexity   string   `json:"complexity,omitempty"`
}

// ReviewDecision is the body of POST /recipes/:id/review.
type ReviewDecision struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

// Store is a grocery store with its aisle category ordering.
type Store struct {
	ID            string   `json:"_id"`
	Name          string   `json:"name"`
	CategoryOrder []string `json:"categoryOrder"`
	ImageURL      string   `json:"imageUrl,omitempty"`
}
