package rbac

// 角色常量
const (
	RoleAdmin      = "ADMIN"
	RoleMEOfficer  = "ME_OFFICER"
	RoleContractor = "CONTRACTOR"
	RoleViewer     = "VIEWER"
)

// 权限常量
const (
	// 敏感操作权限
	CapabilitySubmitClaim      = "submission:create"
	CapabilityReviewSubmission = "submission:review"
	CapabilityOverrideProgress = "project:override_progress"
	CapabilityReplayOutbox     = "outbox:replay"

	// 普通操作权限
	CapabilityReadOwnSubmissions = "submission:read_own"
	CapabilityReadAllSubmissions = "submission:read_all"
)

// 角色权限映射
var rolePermissions = map[string][]string{
	RoleContractor: {
		CapabilitySubmitClaim,
		CapabilityReadOwnSubmissions,
	},
	RoleMEOfficer: {
		CapabilityReviewSubmission,
		CapabilityReadAllSubmissions,
	},
	RoleAdmin: {
		CapabilitySubmitClaim,
		CapabilityReviewSubmission,
		CapabilityOverrideProgress,
		CapabilityReplayOutbox,
		CapabilityReadAllSubmissions,
	},
	RoleViewer: {
		CapabilityReadAllSubmissions,
	},
}

// KnownRole reports whether the role is one of the four platform roles.
func KnownRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// HasCapability 检查角色是否有指定权限
func HasCapability(role, capability string) bool {
	permissions, ok := rolePermissions[role]
	if !ok {
		return false
	}

	for _, p := range permissions {
		if p == capability {
			return true
		}
	}
	return false
}

// CheckCapability 检查角色是否有指定权限（返回错误而不是布尔值，便于处理）
func CheckCapability(role, capability string) error {
	if !HasCapability(role, capability) {
		return &CapabilityDeniedError{
			Role:       role,
			Capability: capability,
		}
	}
	return nil
}

// CapabilityDeniedError 表示权限不足的错误
type CapabilityDeniedError struct {
	Role       string
	Capability string
}

func (e *CapabilityDeniedError) Error() string {
	return "insufficient permissions"
}

// CanViewSubmission 判断 actor 能否读取某个承包商的提交
// 承包商只能看自己的；其余角色按 read_all 权限判断
func CanViewSubmission(role string, actorContractorID *int64, ownerContractorID int64) bool {
	if HasCapability(role, CapabilityReadAllSubmissions) {
		return true
	}
	if role == RoleContractor && actorContractorID != nil {
		return *actorContractorID == ownerContractorID
	}
	return false
}
