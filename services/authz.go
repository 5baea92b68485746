package services

import "github.com/moimhub/club-system/models"

// Чистые предикаты авторизации. Никогда не возвращают ошибок: при
// отсутствии membership вызывающий передает пустую роль, и все предикаты
// дают false. Каждая фича обязана ходить сюда, а не дублировать проверки.

// IsClubAdmin отвечает true для manager и staff — единственный предикат,
// открывающий клубные административные действия (группы, заявки, касса,
// страница клуба).
func IsClubAdmin(role models.ClubRole) bool {
	return role == models.RoleManager || role == models.RoleStaff
}

// IsGroupLeader: лидер конкретной группы, либо клубный админ — админы
// считаются лидерами всех групп клуба (намеренное правило, не упущение).
func IsGroupLeader(memberships []*models.GroupMembership, groupID int, role models.ClubRole) bool {
	if IsClubAdmin(role) {
		return true
	}
	for _, gm := range memberships {
		if gm.GroupID == groupID && gm.Role == models.GroupRoleLeader {
			return true
		}
	}
	return false
}

// CanWriteBoard: право видеть форму нового поста вообще. Пост в конкретную
// группу дополнительно требует лидерства в этой группе — см. IsGroupLeader.
func CanWriteBoard(role models.ClubRole, leaderGroupIDs []int) bool {
	return IsClubAdmin(role) || len(leaderGroupIDs) > 0
}

// LeaderGroupIDs выбирает id групп, где пользователь leader.
func LeaderGroupIDs(memberships []*models.GroupMembership) []int {
	ids := make([]int, 0, len(memberships))
	for _, gm := range memberships {
		if gm.Role == models.GroupRoleLeader {
			ids = append(ids, gm.GroupID)
		}
	}
	return ids
}
