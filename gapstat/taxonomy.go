// ABOUTME: Fixed controlled-vocabulary taxonomy mapping document tags to analysis axes.
// ABOUTME: Pure dictionary lookups, no LLM involvement anywhere in this package.

package gapstat

import (
	"sort"
	"strings"
)

// Axis identifies one of the five analysis dimensions a tag can map into.
type Axis string

const (
	AxisPopulation   Axis = "population"
	AxisIntervention Axis = "intervention"
	AxisSetting      Axis = "setting"
	AxisOutcome      Axis = "outcome"
	AxisStudyType    Axis = "study_type"
)

// Axes lists all analysis axes in their canonical order.
var Axes = []Axis{AxisPopulation, AxisIntervention, AxisSetting, AxisOutcome, AxisStudyType}

type taxonomyEntry struct {
	Axis     Axis
	Category string
}

// tagTaxonomy maps controlled-vocabulary tags to (axis, category). Tags not in
// the table are dropped silently by MapTags.
var tagTaxonomy = map[string]taxonomyEntry{
	// Populations: age groups
	"Adult":             {AxisPopulation, "adults"},
	"Young Adult":       {AxisPopulation, "young_adults"},
	"Middle Aged":       {AxisPopulation, "middle_aged"},
	"Aged":              {AxisPopulation, "elderly"},
	"Aged, 80 and over": {AxisPopulation, "elderly"},
	"Adolescent":        {AxisPopulation, "adolescents"},
	"Child":             {AxisPopulation, "children"},
	"Infant":            {AxisPopulation, "infants"},

	// Populations: pregnancy and reproductive
	"Pregnant Women":    {AxisPopulation, "pregnant"},
	"Pregnancy":         {AxisPopulation, "pregnant"},
	"Postpartum Period": {AxisPopulation, "postpartum"},

	// Populations: socioeconomic
	"Poverty":                {AxisPopulation, "low_income"},
	"Socioeconomic Factors":  {AxisPopulation, "low_income"},
	"Medically Uninsured":    {AxisPopulation, "uninsured"},
	"Homeless Persons":       {AxisPopulation, "homeless"},
	"Vulnerable Populations": {AxisPopulation, "vulnerable"},

	// Populations: race and ethnicity
	"Minority Groups":                   {AxisPopulation, "minorities"},
	"African Americans":                 {AxisPopulation, "african_american"},
	"Hispanic Americans":                {AxisPopulation, "hispanic"},
	"Asian Americans":                   {AxisPopulation, "asian"},
	"American Indian or Alaska Native":  {AxisPopulation, "native_american"},

	// Populations: health conditions
	"Mental Disorders":                       {AxisPopulation, "psychiatric_comorbidity"},
	"Substance-Related Disorders":            {AxisPopulation, "substance_use_disorder"},
	"Alcohol-Related Disorders":              {AxisPopulation, "alcohol_use_disorder"},
	"Depression":                             {AxisPopulation, "depression"},
	"Anxiety Disorders":                      {AxisPopulation, "anxiety"},
	"Schizophrenia":                          {AxisPopulation, "schizophrenia"},
	"Diabetes Mellitus":                      {AxisPopulation, "diabetes"},
	"Cardiovascular Diseases":                {AxisPopulation, "cardiovascular"},
	"Pulmonary Disease, Chronic Obstructive": {AxisPopulation, "copd"},
	"HIV Infections":                         {AxisPopulation, "hiv"},

	// Populations: occupational and sex
	"Veterans":           {AxisPopulation, "veterans"},
	"Health Personnel":   {AxisPopulation, "healthcare_workers"},
	"Military Personnel": {AxisPopulation, "military"},
	"Male":               {AxisPopulation, "male"},
	"Female":             {AxisPopulation, "female"},

	// Interventions: pharmacological
	"Nicotine Replacement Therapy":  {AxisIntervention, "nrt"},
	"Tobacco Use Cessation Devices": {AxisIntervention, "nrt"},
	"Nicotine":                      {AxisIntervention, "nrt"},
	"Nicotinic Agonists":            {AxisIntervention, "nrt"},
	"Varenicline":                   {AxisIntervention, "varenicline"},
	"Bupropion":                     {AxisIntervention, "bupropion"},
	"Cytisine":                      {AxisIntervention, "cytisine"},
	"Antidepressive Agents":         {AxisIntervention, "antidepressants"},
	"Antipsychotic Agents":          {AxisIntervention, "antipsychotics"},
	"Naltrexone":                    {AxisIntervention, "naltrexone"},
	"Methadone":                     {AxisIntervention, "methadone"},

	// Interventions: behavioral
	"Counseling":                   {AxisIntervention, "counseling"},
	"Cognitive Behavioral Therapy": {AxisIntervention, "cbt"},
	"Motivational Interviewing":    {AxisIntervention, "motivational_interviewing"},
	"Behavior Therapy":             {AxisIntervention, "behavior_therapy"},
	"Psychotherapy":                {AxisIntervention, "psychotherapy"},
	"Psychotherapy, Group":         {AxisIntervention, "group_therapy"},
	"Family Therapy":               {AxisIntervention, "family_therapy"},
	"Crisis Intervention":          {AxisIntervention, "crisis_intervention"},
	"Mindfulness":                  {AxisIntervention, "mindfulness"},

	// Interventions: education and prevention
	"Health Education":             {AxisIntervention, "health_education"},
	"Patient Education as Topic":   {AxisIntervention, "patient_education"},
	"Health Promotion":             {AxisIntervention, "health_promotion"},
	"Preventive Health Services":   {AxisIntervention, "prevention"},
	"Primary Prevention":           {AxisIntervention, "primary_prevention"},
	"Secondary Prevention":         {AxisIntervention, "secondary_prevention"},

	// Interventions: technology-based
	"Hotlines":            {AxisIntervention, "hotlines"},
	"Telephone":           {AxisIntervention, "telephone_intervention"},
	"Text Messaging":      {AxisIntervention, "mobile_sms"},
	"Telemedicine":        {AxisIntervention, "telehealth"},
	"Mobile Applications": {AxisIntervention, "mobile_app"},
	"Internet":            {AxisIntervention, "web_based"},
	"Smartphone":          {AxisIntervention, "mobile_app"},
	"Video Games":         {AxisIntervention, "gamification"},

	// Interventions: incentives and social support
	"Motivation":         {AxisIntervention, "incentives"},
	"Reward":             {AxisIntervention, "incentives"},
	"Social Support":     {AxisIntervention, "social_support"},
	"Peer Group":         {AxisIntervention, "peer_support"},
	"Self-Help Groups":   {AxisIntervention, "self_help_groups"},
	"Community Networks": {AxisIntervention, "community_support"},

	// Interventions: screening, care coordination, lifestyle
	"Mass Screening":                  {AxisIntervention, "screening"},
	"Early Medical Intervention":      {AxisIntervention, "brief_intervention"},
	"Early Intervention, Educational": {AxisIntervention, "early_intervention"},
	"Case Management":                 {AxisIntervention, "case_management"},
	"Patient Navigation":              {AxisIntervention, "patient_navigation"},
	"Patient Care Team":               {AxisIntervention, "care_coordination"},
	"Referral and Consultation":       {AxisIntervention, "referral"},
	"Exercise":                        {AxisIntervention, "exercise"},
	"Exercise Therapy":                {AxisIntervention, "exercise_therapy"},
	"Diet Therapy":                    {AxisIntervention, "diet_intervention"},
	"Life Style":                      {AxisIntervention, "lifestyle_intervention"},
	"Weight Loss":                     {AxisIntervention, "weight_management"},

	// Settings
	"Emergency Service, Hospital": {AxisSetting, "emergency_department"},
	"Emergency Medical Services":  {AxisSetting, "emergency_department"},
	"Hospitals":                   {AxisSetting, "inpatient"},
	"Hospitalization":             {AxisSetting, "inpatient"},
	"Primary Health Care":         {AxisSetting, "primary_care"},
	"Ambulatory Care":             {AxisSetting, "outpatient"},
	"Community Health Services":   {AxisSetting, "community"},
	"Hospitals, Urban":            {AxisSetting, "urban_hospital"},
	"Hospitals, Rural":            {AxisSetting, "rural_hospital"},
	"Hospitals, Community":        {AxisSetting, "community_hospital"},
	"Academic Medical Centers":    {AxisSetting, "academic_medical_center"},

	// Outcomes
	"Smoking Cessation":     {AxisOutcome, "cessation"},
	"Tobacco Use Cessation": {AxisOutcome, "cessation"},
	"Tobacco Use Disorder":  {AxisOutcome, "tobacco_dependence"},
	"Recurrence":            {AxisOutcome, "relapse"},
	"Treatment Outcome":     {AxisOutcome, "treatment_outcome"},
	"Cost-Benefit Analysis": {AxisOutcome, "cost_effectiveness"},
	"Health Care Costs":     {AxisOutcome, "cost"},
	"Cost of Illness":       {AxisOutcome, "cost"},
	"Quality of Life":       {AxisOutcome, "quality_of_life"},
	"Patient Satisfaction":  {AxisOutcome, "satisfaction"},
	"Patient Compliance":    {AxisOutcome, "adherence"},
	"Medication Adherence":  {AxisOutcome, "adherence"},
	"Patient Acceptance of Health Care": {AxisOutcome, "engagement"},
	"Health Services Accessibility":     {AxisOutcome, "access"},

	// Study types (from publication type metadata)
	"Randomized Controlled Trial": {AxisStudyType, "rct"},
	"Controlled Clinical Trial":   {AxisStudyType, "controlled_trial"},
	"Clinical Trial":              {AxisStudyType, "clinical_trial"},
	"Pragmatic Clinical Trial":    {AxisStudyType, "pragmatic_trial"},
	"Observational Study":         {AxisStudyType, "observational"},
	"Cohort Studies":              {AxisStudyType, "cohort"},
	"Cross-Sectional Studies":     {AxisStudyType, "cross_sectional"},
	"Case-Control Studies":        {AxisStudyType, "case_control"},
	"Systematic Review":           {AxisStudyType, "systematic_review"},
	"Meta-Analysis":               {AxisStudyType, "meta_analysis"},
	"Review":                      {AxisStudyType, "review"},
	"Qualitative Research":        {AxisStudyType, "qualitative"},
	"Pilot Projects":              {AxisStudyType, "pilot"},
}

// MapTag maps a single tag to its axis and category. The second return is
// false for tags outside the taxonomy.
func MapTag(tag string) (Axis, string, bool) {
	e, ok := tagTaxonomy[tag]
	return e.Axis, e.Category, ok
}

// MapTags maps a list of tags to categories grouped by axis. Duplicate
// categories within an axis are collapsed; the first occurrence wins the
// position. Unmapped tags are dropped.
func MapTags(tags []string) map[Axis][]string {
	result := map[Axis][]string{
		AxisPopulation:   {},
		AxisIntervention: {},
		AxisSetting:      {},
		AxisOutcome:      {},
		AxisStudyType:    {},
	}

	for _, tag := range tags {
		e, ok := tagTaxonomy[tag]
		if !ok {
			continue
		}
		if !containsString(result[e.Axis], e.Category) {
			result[e.Axis] = append(result[e.Axis], e.Category)
		}
	}

	return result
}

// Categories returns every distinct category defined for an axis, sorted.
func Categories(axis Axis) []string {
	seen := make(map[string]bool)
	var cats []string
	for _, e := range tagTaxonomy {
		if e.Axis == axis && !seen[e.Category] {
			seen[e.Category] = true
			cats = append(cats, e.Category)
		}
	}
	sort.Strings(cats)
	return cats
}

// DisplayName converts a category slug to a human-readable label.
func DisplayName(category string) string {
	words := strings.Split(category, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
