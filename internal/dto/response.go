package dto

// ── 认证模块响应 ──

// MeResponse 当前用户信息（GET /auth/me）
// 身份来自外部身份服务签发的 Token，本地只补充统计数据
type MeResponse struct {
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	HuntsJoined   int    `json:"hunts_joined"`
}

// ── 分页请求 ──

// PaginationRequest 通用分页参数
type PaginationRequest struct {
	Page     int `form:"page"      binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// GetPage 获取页码（含默认值）
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页数量（含默认值）
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

// GetOffset 计算偏移量
func (p *PaginationRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}
