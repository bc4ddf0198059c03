package steps

import (
	"errors"
	"fmt"
	"slices"
)

// StartUpParams — запуск клиента и вход в игру.
type StartUpParams struct {
	Enable           *bool   `json:"enable,omitempty"`
	ClientType       *string `json:"client_type,omitempty"`
	StartGameEnabled *bool   `json:"start_game_enabled,omitempty"`
	AccountName      *string `json:"account_name,omitempty"`
}

func (p *StartUpParams) Validate() error {
	return checkEnum("client_type", p.ClientType, ClientTypes)
}

// CloseDownParams — закрытие клиента.
type CloseDownParams struct {
	Enable     *bool  `json:"enable,omitempty"`
	ClientType string `json:"client_type"`
}

func (p *CloseDownParams) Validate() error {
	if p.ClientType == "" {
		return errors.New("client_type is required")
	}
	return checkEnum("client_type", &p.ClientType, ClientTypes)
}

// FightParams — прохождение этапов за рассудок.
type FightParams struct {
	Enable           *bool          `json:"enable,omitempty"`
	Stage            *string        `json:"stage,omitempty"`
	Medicine         *int           `json:"medicine,omitempty"`
	ExpiringMedicine *int           `json:"expiring_medicine,omitempty"`
	Stone            *int           `json:"stone,omitempty"`
	Times            *int           `json:"times,omitempty"`
	Series           *int           `json:"series,omitempty"`
	Drops            map[string]int `json:"drops,omitempty"`
	ReportToPenguin  *bool          `json:"report_to_penguin,omitempty"`
	PenguinID        *string        `json:"penguin_id,omitempty"`
	Server           *string        `json:"server,omitempty"`
	ClientType       *string        `json:"client_type,omitempty"`
	DrGrandet        *bool          `json:"DrGrandet,omitempty"`
}

func (p *FightParams) Validate() error {
	return firstErr(
		checkNonNegative("medicine", p.Medicine),
		checkNonNegative("expiring_medicine", p.ExpiringMedicine),
		checkNonNegative("stone", p.Stone),
		checkNonNegative("times", p.Times),
		checkRange("series", p.Series, -1, 6),
		checkEnum("server", p.Server, Servers),
		checkEnum("client_type", p.ClientType, ClientTypes),
	)
}

// RecruitParams — открытый набор.
//
// Select и Confirm обязательны; пустой Confirm означает
// только расчёт тегов.
type RecruitParams struct {
	Enable          *bool          `json:"enable,omitempty"`
	Refresh         *bool          `json:"refresh,omitempty"`
	Select          []int          `json:"select"`
	Confirm         []int          `json:"confirm"`
	FirstTags       []string       `json:"first_tags,omitempty"`
	ExtraTagsMode   *int           `json:"extra_tags_mode,omitempty"`
	Times           *int           `json:"times,omitempty"`
	SetTime         *bool          `json:"set_time,omitempty"`
	Expedite        *bool          `json:"expedite,omitempty"`
	ExpediteTimes   *int           `json:"expedite_times,omitempty"`
	SkipRobot       *bool          `json:"skip_robot,omitempty"`
	RecruitmentTime map[string]int `json:"recruitment_time,omitempty"`
	ReportToPenguin *bool          `json:"report_to_penguin,omitempty"`
	PenguinID       *string        `json:"penguin_id,omitempty"`
	ReportToYituliu *bool          `json:"report_to_yituliu,omitempty"`
	YituliuID       *string        `json:"yituliu_id,omitempty"`
	Server          *string        `json:"server,omitempty"`
}

func (p *RecruitParams) Validate() error {
	if p.Select == nil {
		return errors.New("select is required")
	}
	if p.Confirm == nil {
		return errors.New("confirm is required")
	}
	for _, lvl := range append(slices.Clone(p.Select), p.Confirm...) {
		if lvl < 1 || lvl > 6 {
			return fmt.Errorf("tag level %d is out of range [1, 6]", lvl)
		}
	}
	return firstErr(
		checkRange("extra_tags_mode", p.ExtraTagsMode, 0, 2),
		checkNonNegative("times", p.Times),
		checkNonNegative("expedite_times", p.ExpediteTimes),
		checkEnum("server", p.Server, Servers),
	)
}

// Режимы смены в инфраструктуре.
const (
	InfrastModeDefault  = 0
	InfrastModeCustom   = 10000
	InfrastModeRotation = 20000
)

// InfrastParams — смены в инфраструктуре.
type InfrastParams struct {
	Enable                  *bool    `json:"enable,omitempty"`
	Mode                    *int     `json:"mode,omitempty"`
	Facility                []string `json:"facility"`
	Drones                  *string  `json:"drones,omitempty"`
	Threshold               *float64 `json:"threshold,omitempty"`
	Replenish               *bool    `json:"replenish,omitempty"`
	DormNotstationedEnabled *bool    `json:"dorm_notstationed_enabled,omitempty"`
	DormTrustEnabled        *bool    `json:"dorm_trust_enabled,omitempty"`
	Filename                *string  `json:"filename,omitempty"`
	PlanIndex               *int     `json:"plan_index,omitempty"`
}

func (p *InfrastParams) Validate() error {
	if len(p.Facility) == 0 {
		return errors.New("facility is required")
	}
	for _, f := range p.Facility {
		if !slices.Contains(Facilities, f) {
			return fmt.Errorf("facility: %q is not one of %v", f, Facilities)
		}
	}
	if p.Mode != nil {
		switch *p.Mode {
		case InfrastModeDefault, InfrastModeRotation:
		case InfrastModeCustom:
			if p.Filename == nil || *p.Filename == "" || p.PlanIndex == nil {
				return errors.New("custom mode requires filename and plan_index")
			}
		default:
			return fmt.Errorf("mode: unsupported value %d", *p.Mode)
		}
	}
	if p.Threshold != nil && (*p.Threshold < 0 || *p.Threshold > 1) {
		return fmt.Errorf("threshold: %v is out of range [0, 1]", *p.Threshold)
	}
	return firstErr(
		checkEnum("drones", p.Drones, DroneUsages),
		checkNonNegative("plan_index", p.PlanIndex),
	)
}

// MallParams — кредиты и магазин.
type MallParams struct {
	Enable                    *bool    `json:"enable,omitempty"`
	Shopping                  *bool    `json:"shopping,omitempty"`
	BuyFirst                  []string `json:"buy_first,omitempty"`
	Blacklist                 []string `json:"blacklist,omitempty"`
	ForceShoppingIfCreditFull *bool    `json:"force_shopping_if_credit_full,omitempty"`
	OnlyBuyDiscount           *bool    `json:"only_buy_discount,omitempty"`
	ReserveMaxCredit          *bool    `json:"reserve_max_credit,omitempty"`
}

func (p *MallParams) Validate() error {
	return nil
}

// AwardParams — сбор наград.
type AwardParams struct {
	Enable        *bool `json:"enable,omitempty"`
	Award         *bool `json:"award,omitempty"`
	Mail          *bool `json:"mail,omitempty"`
	Recruit       *bool `json:"recruit,omitempty"`
	Orundum       *bool `json:"orundum,omitempty"`
	Mining        *bool `json:"mining,omitempty"`
	SpecialAccess *bool `json:"specialaccess,omitempty"`
}

func (p *AwardParams) Validate() error {
	return nil
}

// RoguelikeParams — интегрированные стратегии.
type RoguelikeParams struct {
	Enable                        *bool    `json:"enable,omitempty"`
	Theme                         *string  `json:"theme,omitempty"`
	Mode                          *int     `json:"mode,omitempty"`
	Squad                         *string  `json:"squad,omitempty"`
	Roles                         *string  `json:"roles,omitempty"`
	CoreChar                      *string  `json:"core_char,omitempty"`
	UseSupport                    *bool    `json:"use_support,omitempty"`
	UseNonfriendSupport           *bool    `json:"use_nonfriend_support,omitempty"`
	StartsCount                   *int     `json:"starts_count,omitempty"`
	Difficulty                    *int     `json:"difficulty,omitempty"`
	StopAtFinalBoss               *bool    `json:"stop_at_final_boss,omitempty"`
	InvestmentEnabled             *bool    `json:"investment_enabled,omitempty"`
	InvestmentsCount              *int     `json:"investments_count,omitempty"`
	StopWhenInvestmentFull        *bool    `json:"stop_when_investment_full,omitempty"`
	StartWithEliteTwo             *bool    `json:"start_with_elite_two,omitempty"`
	OnlyStartWithEliteTwo         *bool    `json:"only_start_with_elite_two,omitempty"`
	RefreshTraderWithDice         *bool    `json:"refresh_trader_with_dice,omitempty"`
	FirstFloorFoldartal           *string  `json:"first_floor_foldartal,omitempty"`
	StartFoldartalList            []string `json:"start_foldartal_list,omitempty"`
	UseFoldartal                  *bool    `json:"use_foldartal,omitempty"`
	CheckCollapsalParadigms       *bool    `json:"check_collapsal_paradigms,omitempty"`
	DoubleCheckCollapsalParadigms *bool    `json:"double_check_collapsal_paradigms,omitempty"`
	ExpectedCollapsalParadigms    []string `json:"expected_collapsal_paradigms,omitempty"`
}

func (p *RoguelikeParams) Validate() error {
	if err := checkEnum("theme", p.Theme, RoguelikeThemes); err != nil {
		return err
	}
	sami := p.Theme != nil && *p.Theme == "Sami"
	samiOnly := p.FirstFloorFoldartal != nil || len(p.StartFoldartalList) > 0 ||
		p.UseFoldartal != nil || p.CheckCollapsalParadigms != nil ||
		p.DoubleCheckCollapsalParadigms != nil || len(p.ExpectedCollapsalParadigms) > 0
	if samiOnly && !sami {
		return errors.New("foldartal and collapsal paradigm options require theme Sami")
	}
	return firstErr(
		checkRange("mode", p.Mode, 0, 7),
		checkNonNegative("starts_count", p.StartsCount),
		checkNonNegative("investments_count", p.InvestmentsCount),
		checkRange("difficulty", p.Difficulty, -1, 18),
	)
}

// ReclamationParams — алгоритм рекламации.
type ReclamationParams struct {
	Enable          *bool    `json:"enable,omitempty"`
	Theme           *string  `json:"theme,omitempty"`
	Mode            *int     `json:"mode,omitempty"`
	ToolsToCraft    []string `json:"tools_to_craft,omitempty"`
	IncrementMode   *int     `json:"increment_mode,omitempty"`
	NumCraftBatches *int     `json:"num_craft_batches,omitempty"`
}

func (p *ReclamationParams) Validate() error {
	return firstErr(
		checkEnum("theme", p.Theme, ReclamationThemes),
		checkRange("mode", p.Mode, 0, 1),
		checkRange("increment_mode", p.IncrementMode, 0, 1),
		checkNonNegative("num_craft_batches", p.NumCraftBatches),
	)
}
