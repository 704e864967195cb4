// Package application 挑战服务的应用层：命令、查询与周期风控扫描。
package application

// ChallengeService 作为挑战服务操作的门面。
type ChallengeService struct {
	Command *ChallengeCommandService
	Query   *ChallengeQueryService
}

// NewChallengeService 创建并返回一个新的 ChallengeService 门面实例。
func NewChallengeService(command *ChallengeCommandService, query *ChallengeQueryService) *ChallengeService {
	return &ChallengeService{
		Command: command,
		Query:   query,
	}
}
