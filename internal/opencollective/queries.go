package opencollective

// The query catalog. Each document is paired with a variable-building
// rule in the operation that sends it; the shapes here match what the
// upstream schema expects and are not composed dynamically.

const queryGetCollective = `
query GetCollective($slug: String!) {
    collective(slug: $slug) {
        id
        slug
        name
        description
        currency
    }
}`

// The status variable is declared as [ExpenseStatusFilter]: the
// upstream field is array-typed, so a single status is always sent as
// a one-element list.
const queryGetExpenses = `
query GetExpenses(
    $account: AccountReferenceInput!,
    $limit: Int!,
    $offset: Int!,
    $status: [ExpenseStatusFilter],
    $dateFrom: DateTime
) {
    expenses(
        account: $account,
        limit: $limit,
        offset: $offset,
        status: $status,
        dateFrom: $dateFrom,
        orderBy: { field: CREATED_AT, direction: DESC }
    ) {
        totalCount
        nodes {
            id
            legacyId
            description
            amount
            currency
            type
            status
            createdAt
            payee { name slug }
            createdByAccount { name slug }
            tags
            items {
                id
                description
                amount
                url
                incurredAt
            }
        }
    }
}`

const queryGetExpense = `
query GetExpense($expense: ExpenseReferenceInput!) {
    expense(expense: $expense) {
        id
        legacyId
        description
        amount
        currency
        type
        status
        createdAt
        payee { name slug }
        createdByAccount { name slug }
        tags
        items {
            id
            description
            amount
            url
            incurredAt
        }
    }
}`

const queryGetPayoutMethods = `
query GetPayoutMethods($slug: String!) {
    account(slug: $slug) {
        id
        slug
        payoutMethods {
            id
            type
            name
            data
            isSaved
        }
    }
}`

const queryGetMe = `
query GetMe {
    me {
        id
        slug
        name
    }
}`

const mutationCreateExpense = `
mutation CreateExpense(
    $expense: ExpenseCreateInput!,
    $account: AccountReferenceInput!
) {
    createExpense(expense: $expense, account: $account) {
        id
        legacyId
        description
        amount
        currency
        type
        status
    }
}`

const mutationProcessExpense = `
mutation ProcessExpense(
    $expense: ExpenseReferenceInput!,
    $action: ExpenseProcessAction!,
    $message: String
) {
    processExpense(expense: $expense, action: $action, message: $message) {
        id
        legacyId
        description
        status
    }
}`

const mutationDeleteExpense = `
mutation DeleteExpense($expense: ExpenseReferenceInput!) {
    deleteExpense(expense: $expense) {
        id
        legacyId
    }
}`

const mutationUploadFile = `
mutation UploadFile($files: [UploadFileInput!]!) {
    uploadFile(files: $files) {
        file {
            id
            url
            name
            type
            size
        }
    }
}`
