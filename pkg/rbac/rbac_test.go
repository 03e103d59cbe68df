package rbac

import "testing"

func TestRoleCapabilities(t *testing.T) {
	cases := []struct {
		role       string
		capability string
		want       bool
	}{
		{RoleContractor, CapabilitySubmitClaim, true},
		{RoleContractor, CapabilityReviewSubmission, false},
		{RoleContractor, CapabilityOverrideProgress, false},
		{RoleMEOfficer, CapabilityReviewSubmission, true},
		{RoleMEOfficer, CapabilitySubmitClaim, false},
		{RoleAdmin, CapabilityReviewSubmission, true},
		{RoleAdmin, CapabilityOverrideProgress, true},
		{RoleViewer, CapabilityReadAllSubmissions, true},
		{RoleViewer, CapabilitySubmitClaim, false},
		{"UNKNOWN", CapabilityReadOwnSubmissions, false},
	}

	for _, c := range cases {
		if got := HasCapability(c.role, c.capability); got != c.want {
			t.Errorf("HasCapability(%s, %s) = %v, want %v", c.role, c.capability, got, c.want)
		}
	}
}

func TestCheckCapabilityReturnsTypedError(t *testing.T) {
	err := CheckCapability(RoleContractor, CapabilityReviewSubmission)
	if err == nil {
		t.Fatal("expected error for contractor review attempt")
	}
	denied, ok := err.(*CapabilityDeniedError)
	if !ok {
		t.Fatalf("expected *CapabilityDeniedError, got %T", err)
	}
	if denied.Role != RoleContractor || denied.Capability != CapabilityReviewSubmission {
		t.Fatalf("unexpected error contents: %+v", denied)
	}

	if err := CheckCapability(RoleMEOfficer, CapabilityReviewSubmission); err != nil {
		t.Fatalf("expected officer review to be allowed, got %v", err)
	}
}

func TestCanViewSubmission(t *testing.T) {
	own := int64(7)
	other := int64(8)

	if !CanViewSubmission(RoleContractor, &own, 7) {
		t.Error("contractor should see own submissions")
	}
	if CanViewSubmission(RoleContractor, &other, 7) {
		t.Error("contractor should not see another contractor's submissions")
	}
	if CanViewSubmission(RoleContractor, nil, 7) {
		t.Error("contractor without contractor id should see nothing")
	}
	if !CanViewSubmission(RoleMEOfficer, nil, 7) {
		t.Error("officer should see all submissions")
	}
	if !CanViewSubmission(RoleAdmin, nil, 7) {
		t.Error("admin should see all submissions")
	}
}
